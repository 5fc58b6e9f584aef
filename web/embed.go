// Package web embeds the viewer page, its Datastar fragments and the static
// assets.
package web

import "embed"

//go:embed templates static
var FS embed.FS

// DataAsset is the static feature collection shown as the data layer.
const DataAsset = "static/data.geojson"

// FragmentPattern matches the fragment templates inside FS.
const FragmentPattern = "templates/fragments/*.html"
