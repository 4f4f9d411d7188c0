// Command oidcclient is a minimal relying party that walks the authorization
// code flow with PKCE against a local authorization server.
package main

import (
	"context"
	"fmt"
	"html"
	"log"
	"net/http"
	"os"

	"golang.org/x/oauth2"
)

var (
	authBaseURL  = env("OIDC_AUTH_BASE_URL", "http://localhost:8080")
	clientID     = env("OIDC_CLIENT_ID", "dev-client")
	clientSecret = env("OIDC_CLIENT_SECRET", "dev-secret")
	redirectURL  = env("OIDC_REDIRECT_URL", "http://localhost:9009/callback")
)

var (
	conf = &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{"openid", "profile", "api", "offline_access"},
		Endpoint: oauth2.Endpoint{
			AuthURL:  authBaseURL + "/connect/authorize",
			TokenURL: authBaseURL + "/connect/token",
		},
	}
	verifier string
	token    *oauth2.Token
	lastErr  string
)

func main() {
	http.HandleFunc("/", handleIndex)
	http.HandleFunc("/authorize", handleAuthorize)
	http.HandleFunc("/callback", handleCallback)
	http.HandleFunc("/refresh", handleRefresh)

	port := env("OIDC_CLIENT_PORT", "9009")
	log.Printf("example client running at http://localhost:%s", port)
	log.Printf("config: AUTH_BASE=%s CLIENT_ID=%s REDIRECT_URL=%s", authBaseURL, clientID, redirectURL)
	log.Fatal(http.ListenAndServe(":"+port, nil))
}

func handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	warn := ""
	if lastErr != "" {
		warn = `<div style="color:#991b1b;background:#fee2e2;border:1px solid #fca5a5;padding:8px;margin-bottom:8px;">` + html.EscapeString(lastErr) + `</div>`
	}
	var access, refresh, idToken string
	if token != nil {
		access = token.AccessToken
		refresh = token.RefreshToken
		idToken, _ = token.Extra("id_token").(string)
	}
	fmt.Fprintf(w, `<h1>OIDC Example Client</h1>
	%s
	<ul>
		<li><a href="/authorize">Start authorization code flow (PKCE)</a></li>
		<li><a href="/refresh">Refresh the access token</a></li>
	</ul>
	<pre>access_token=%s
refresh_token=%s
id_token=%s</pre>`, warn, html.EscapeString(access), html.EscapeString(refresh), html.EscapeString(idToken))
}

func handleAuthorize(w http.ResponseWriter, r *http.Request) {
	verifier = oauth2.GenerateVerifier()
	url := conf.AuthCodeURL("xyz", oauth2.S256ChallengeOption(verifier))
	http.Redirect(w, r, url, http.StatusFound)
}

func handleCallback(w http.ResponseWriter, r *http.Request) {
	if errName := r.URL.Query().Get("error"); errName != "" {
		lastErr = fmt.Sprintf("authorize failed: %s (%s)", errName, r.URL.Query().Get("error_description"))
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	if r.URL.Query().Get("state") != "xyz" {
		lastErr = "state mismatch"
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	t, err := conf.Exchange(context.Background(), r.URL.Query().Get("code"), oauth2.VerifierOption(verifier))
	if err != nil {
		lastErr = "token exchange failed: " + err.Error()
	} else {
		token = t
		lastErr = ""
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func handleRefresh(w http.ResponseWriter, r *http.Request) {
	if token == nil || token.RefreshToken == "" {
		lastErr = "no refresh token yet"
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	stale := &oauth2.Token{RefreshToken: token.RefreshToken}
	t, err := conf.TokenSource(context.Background(), stale).Token()
	if err != nil {
		lastErr = "refresh failed: " + err.Error()
	} else {
		token = t
		lastErr = ""
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
