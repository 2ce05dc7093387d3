// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"fmt"
	"html"
	"net/http"

	"github.com/stacklok/tokenbroker/pkg/logger"
)

// setSecurityHeaders sets common security headers for all HTML responses
func setSecurityHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("X-XSS-Protection", "1; mode=block")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'unsafe-inline'; script-src 'none'; object-src 'none';")
}

const pageStyle = `
        body { font-family: Arial, sans-serif; margin: 40px; text-align: center; }
        .container { max-width: 600px; margin: 0 auto; }
        .message { padding: 20px; border-radius: 5px; margin: 20px 0; }
        .success { background-color: #e7f6e7; border: 1px solid #b3e6b3; color: #006600; }
        .info { background-color: #e7f3ff; border: 1px solid #b3d9ff; color: #0066cc; }
        .error { background-color: #ffe7e7; border: 1px solid #ffb3b3; color: #cc0000; }`

// writeSuccessPage renders the post-authorization result page. It names the
// user but never contains token values.
func writeSuccessPage(w http.ResponseWriter, userID string) {
	setSecurityHeaders(w)
	htmlContent := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <title>Authorization Successful</title>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <style>%s
    </style>
</head>
<body>
    <div class="container">
        <h1>Authorization Successful!</h1>
        <div class="message success">
            <p>Tokens for <strong>%s</strong> have been stored. You can now close this window.</p>
        </div>
    </div>
</body>
</html>`, pageStyle, html.EscapeString(userID))
	if _, err := w.Write([]byte(htmlContent)); err != nil {
		logger.Warnf("Failed to write HTML content: %v", err)
	}
}

// writeDeniedPage renders the page shown when the provider reports that the
// user declined consent. Declining is not a server error.
func writeDeniedPage(w http.ResponseWriter, reason string) {
	setSecurityHeaders(w)
	htmlContent := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <title>Authorization Declined</title>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <style>%s
    </style>
</head>
<body>
    <div class="container">
        <h1>Authorization Declined</h1>
        <div class="message info">
            <p>The provider reported: %s</p>
            <p>No tokens were stored. You can restart the authorization at any time.</p>
        </div>
    </div>
</body>
</html>`, pageStyle, html.EscapeString(reason))
	if _, err := w.Write([]byte(htmlContent)); err != nil {
		logger.Warnf("Failed to write HTML content: %v", err)
	}
}

// writeFailurePage renders an error page with the given status code.
func writeFailurePage(w http.ResponseWriter, status int, message string) {
	setSecurityHeaders(w)
	w.WriteHeader(status)

	// HTML escape the error message to prevent XSS
	escaped := html.EscapeString(message)
	htmlContent := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <title>Authorization Failed</title>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <style>%s
    </style>
</head>
<body>
    <div class="container">
        <h1>Authorization Failed</h1>
        <div class="message error">
            <p>%s</p>
            <p>Please try again or contact support if the problem persists.</p>
        </div>
    </div>
</body>
</html>`, pageStyle, escaped)
	if _, err := w.Write([]byte(htmlContent)); err != nil {
		logger.Warnf("Failed to write HTML content: %v", err)
	}
}
