package browser

import (
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// applyResourceBlocking sets up request interception to block specified
// resource types (fonts, images, stylesheets, media) plus well-known ad and
// analytics hosts, cutting page weight and render time.
func applyResourceBlocking(page *rod.Page, types []string) error {
	blockSet := make(map[string]bool, len(types))
	for _, t := range types {
		blockSet[strings.ToLower(t)] = true
	}

	router := page.HijackRequests()

	router.MustAdd("*", func(ctx *rod.Hijack) {
		if shouldBlock(blockSet, string(ctx.Request.Type()), ctx.Request.URL().Host) {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})

	go router.Run()

	return nil
}

// blockedHosts are never worth loading on a stats dashboard.
var blockedHosts = []string{
	"googlesyndication.com",
	"doubleclick.net",
	"google-analytics.com",
}

func shouldBlock(blockSet map[string]bool, resType, host string) bool {
	for _, h := range blockedHosts {
		if strings.HasSuffix(host, h) {
			return true
		}
	}

	switch strings.ToLower(resType) {
	case "image":
		return blockSet["images"]
	case "font":
		return blockSet["fonts"]
	case "media":
		return blockSet["media"]
	case "stylesheet":
		return blockSet["stylesheets"]
	}

	return blockSet[strings.ToLower(resType)]
}
