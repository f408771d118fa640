package config

import "time"

var (
	LandingPageRequestTimeout = 5 * time.Second
	LoginRequestTimeout       = 15 * time.Second
	AlbumPageRequestTimeout   = 30 * time.Second
	DetailPageRequestTimeout  = 30 * time.Second
	FileResponseHeaderTimeout = 10 * time.Second
	DialTimeout               = 10 * time.Second
	DialKeepAlive             = 30 * time.Second
	TLSHandshakeTimeout       = 10 * time.Second
	IdleConnTimeout           = 90 * time.Second
	ShutdownGracePeriod       = 10 * time.Second
)
