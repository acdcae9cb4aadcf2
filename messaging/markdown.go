// Copyright 2026 The Matrix-Bot Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"bytes"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// markdownInstance is initialized once and reused. The converter
// configuration never changes and goldmark.Markdown is safe to share.
var (
	markdownInstance goldmark.Markdown
	markdownOnce     sync.Once
)

func getMarkdown() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdownInstance = goldmark.New(
			goldmark.WithExtensions(extension.GFM),
		)
	})
	return markdownInstance
}

// NewTextMessage creates a plain m.text message.
func NewTextMessage(body string) MessageContent {
	return MessageContent{
		MsgType: "m.text",
		Body:    body,
	}
}

// NewMarkdownMessage creates an m.text message whose body is rendered
// to HTML in formatted_body (org.matrix.custom.html). The plain body
// keeps the original markdown source, which clients that don't render
// HTML fall back to.
//
// If rendering fails or produces nothing beyond a bare paragraph of
// the input, the plain message is returned without a formatted body.
func NewMarkdownMessage(body string) MessageContent {
	var rendered bytes.Buffer
	if err := getMarkdown().Convert([]byte(body), &rendered); err != nil {
		return NewTextMessage(body)
	}

	html := strings.TrimSpace(rendered.String())
	if html == "" || html == "<p>"+body+"</p>" {
		return NewTextMessage(body)
	}

	return MessageContent{
		MsgType:       "m.text",
		Body:          body,
		Format:        "org.matrix.custom.html",
		FormattedBody: html,
	}
}
