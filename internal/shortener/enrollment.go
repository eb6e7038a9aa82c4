// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keywarden Contributors

package shortener

import (
	"context"
	"fmt"
	"net/url"
)

// chartEndpoint renders the enrollment URL as a scannable QR code.
const chartEndpoint = "https://chart.googleapis.com/chart?chs=400x400&cht=qr&chld=M|0&chl="

// LinkService builds and shortens TOTP enrollment links. It implements
// the engine's Enrollment collaborator.
type LinkService struct {
	client     *Client
	serverName string
}

// NewLinkService creates an enrollment link service for a named server.
func NewLinkService(client *Client, serverName string) *LinkService {
	if serverName == "" {
		serverName = "Unknown server"
	}
	return &LinkService{client: client, serverName: serverName}
}

// Link returns a shortened URL to a QR code carrying the otpauth://
// enrollment URI for the player's seed.
func (s *LinkService) Link(ctx context.Context, playerID, secret string) (string, error) {
	otpauth := fmt.Sprintf("otpauth://totp/Keywarden@%s:%s?secret=%s",
		url.PathEscape(s.serverName), url.PathEscape(playerID), url.QueryEscape(secret))

	return s.client.Shorten(ctx, chartEndpoint+url.QueryEscape(otpauth))
}
