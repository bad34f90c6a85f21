package chrome

import (
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/device"
)

// touchPresets are devices recorded with mobile and touch emulation rather
// than a plain desktop viewport. Keys match device preset names.
var touchPresets = map[string]device.Info{
	"iPhone 12 Pro": {
		Name:      "iPhone 12 Pro",
		UserAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 14_7_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.1.2 Mobile/15E148 Safari/604.1",
		Width:     390,
		Height:    844,
		Scale:     1.0, // keeps snapshot text at desktop size
		Mobile:    true,
		Touch:     true,
	},
	"iPad Pro": {
		Name:      "iPad Pro",
		UserAgent: "Mozilla/5.0 (iPad; CPU OS 14_7_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.1.2 Mobile/15E148 Safari/604.1",
		Width:     1024,
		Height:    1366,
		Scale:     1.0,
		Mobile:    true,
		Touch:     true,
	},
	"Pixel 5": {
		Name:      "Pixel 5",
		UserAgent: "Mozilla/5.0 (Linux; Android 11; Pixel 5) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/90.0.4430.91 Mobile Safari/537.36",
		Width:     393,
		Height:    851,
		Scale:     1.0,
		Mobile:    true,
		Touch:     true,
	},
}

// Preset returns the touch emulation preset called name.
func Preset(name string) (device.Info, bool) {
	info, ok := touchPresets[name]
	return info, ok
}

// Emulation returns the action that shapes a tab for the named device. Known
// touch presets get full emulation; a user agent given by the caller wins
// over the preset's. Anything else gets a plain viewport, or nil when no
// size is known.
func Emulation(name string, width, height int, userAgent string) chromedp.Action {
	if info, ok := Preset(name); ok {
		if width > 0 && height > 0 {
			info.Width, info.Height = int64(width), int64(height)
		}
		if userAgent != "" {
			info.UserAgent = userAgent
		}
		return chromedp.Emulate(info)
	}
	if width > 0 && height > 0 {
		return chromedp.EmulateViewport(int64(width), int64(height))
	}
	return nil
}
