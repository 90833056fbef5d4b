// Package web embeds the view templates and stylesheet served by the app.
package web

import "embed"

// TemplatesFS holds the server-rendered view templates.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds the stylesheet and any other static assets.
//
//go:embed static/*
var StaticFS embed.FS
