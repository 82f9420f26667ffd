package templating

import "strings"

type uaToken struct {
	token string
	name  string
}

// order matters: Edge and Opera also announce Chrome, Chrome announces Safari
var browserTokens = []uaToken{
	{"Edg/", "Edge"},
	{"OPR/", "Opera"},
	{"SamsungBrowser", "Samsung Internet"},
	{"Firefox/", "Firefox"},
	{"Chrome/", "Chrome"},
	{"CriOS", "Chrome"},
	{"Safari/", "Safari"},
}

var osTokens = []uaToken{
	{"Windows", "Windows"},
	{"Android", "Android"},
	{"iPhone", "iOS"},
	{"iPad", "iPadOS"},
	{"Mac OS X", "macOS"},
	{"CrOS", "ChromeOS"},
	{"Linux", "Linux"},
}

// DescribeDevice turns a raw user agent into "<browser> em <os>".
// A user agent with no recognised token yields UnknownDevice.
func (l Locale) DescribeDevice(userAgent string) string {
	browser := matchToken(userAgent, browserTokens)
	os := matchToken(userAgent, osTokens)

	switch {
	case browser != "" && os != "":
		return browser + l.DeviceJoiner + os
	case browser != "":
		return browser
	case os != "":
		return os
	}
	return l.UnknownDevice
}

func matchToken(ua string, tokens []uaToken) string {
	for _, t := range tokens {
		if strings.Contains(ua, t.token) {
			return t.name
		}
	}
	return ""
}
