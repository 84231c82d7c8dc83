// Package assets embeds the branding shipped with the binary.
package assets

import "embed"

// BrandFS holds the default company profile and any bundled logo files.
//
//go:embed brand/*
var BrandFS embed.FS

// DefaultProfilePath is the embedded default company profile.
const DefaultProfilePath = "brand/profile.yaml"
