// This file is part of Latsar.

// Latsar is free software released under the MIT License.
// See LICENSE.md file for details.

package web

import (
	"encoding/json"
	"net/http"

	"github.com/latsarcode/latsar/src/netshare"
)

type manifestIcon struct {
	Src   string `json:"src"`
	Sizes string `json:"sizes"`
	Type  string `json:"type"`
}

type manifest struct {
	Name            string         `json:"name"`
	ShortName       string         `json:"short_name"`
	StartURL        string         `json:"start_url"`
	Display         string         `json:"display"`
	BackgroundColor string         `json:"background_color"`
	ThemeColor      string         `json:"theme_color"`
	Icons           []manifestIcon `json:"icons"`
}

// Pattern: /manifest.webmanifest
func (data *Data) handleManifest(rw http.ResponseWriter, req *http.Request) error {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		return netshare.ErrMethodNotAllowed
	}

	m := manifest{
		Name:            data.Manifest.Name,
		ShortName:       data.Manifest.ShortName,
		StartURL:        data.Manifest.StartURL,
		Display:         data.Manifest.Display,
		BackgroundColor: data.Manifest.BackgroundColor,
		ThemeColor:      data.Manifest.ThemeColor,
		Icons: []manifestIcon{
			{Src: "/icon-192x192.png", Sizes: "192x192", Type: "image/png"},
		},
	}

	body, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}

	rw.Header().Set("Content-Type", "application/manifest+json")
	rw.Header().Set("Cache-Control", "public, max-age=3600")
	rw.Write(body)
	rw.Write([]byte("\n"))
	return nil
}
