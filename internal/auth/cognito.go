package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// IdentityProvider is the hosted login the session manager talks to.
type IdentityProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*TokenSet, error)
	DecodeClaims(ctx context.Context, rawIDToken string) (Claims, error)
	FetchUserInfo(ctx context.Context, accessToken string) (Claims, error)
	LogoutURL() string
}

// CognitoOptions configures a CognitoAuthenticator.
type CognitoOptions struct {
	Domain            string
	ClientID          string
	ClientSecret      string
	RedirectURI       string
	IssuerURL         string
	ResponseType      string
	Scopes            []string
	LogoutRedirectURI string
	HTTPClient        *http.Client
}

// CognitoAuthenticator drives the Cognito hosted UI.
type CognitoAuthenticator struct {
	config       *oauth2.Config
	baseURL      string
	responseType string
	logoutURI    string
	httpClient   *http.Client

	provider *oidc.Provider
	verifier *oidc.IDTokenVerifier
}

// NewCognitoAuthenticator builds the authenticator. When IssuerURL is set the
// OIDC discovery document is fetched so ID tokens can be verified and the
// userinfo endpoint used.
func NewCognitoAuthenticator(ctx context.Context, opts CognitoOptions) (*CognitoAuthenticator, error) {
	if opts.Domain == "" || opts.ClientID == "" {
		return nil, errors.New("cognito domain and client id are required")
	}

	baseURL := normalizeDomain(opts.Domain)
	scopes := opts.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "email", "profile"}
	}
	responseType := opts.ResponseType
	if responseType == "" {
		responseType = "code"
	}

	a := &CognitoAuthenticator{
		config: &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			RedirectURL:  opts.RedirectURI,
			Endpoint: oauth2.Endpoint{
				AuthURL:  baseURL + "/oauth2/authorize",
				TokenURL: baseURL + "/oauth2/token",
			},
			Scopes: scopes,
		},
		baseURL:      baseURL,
		responseType: responseType,
		logoutURI:    opts.LogoutRedirectURI,
		httpClient:   opts.HTTPClient,
	}

	if opts.IssuerURL != "" {
		provider, err := oidc.NewProvider(a.clientContext(ctx), opts.IssuerURL)
		if err != nil {
			return nil, fmt.Errorf("discover oidc provider: %w", err)
		}
		a.provider = provider
		a.verifier = provider.Verifier(&oidc.Config{ClientID: opts.ClientID})
	}

	return a, nil
}

// AuthURL returns the hosted login URL carrying the given state.
func (a *CognitoAuthenticator) AuthURL(state string) string {
	if a.responseType == "code" {
		return a.config.AuthCodeURL(state)
	}
	return a.config.AuthCodeURL(state, oauth2.SetAuthURLParam("response_type", a.responseType))
}

// Exchange trades an authorization code for tokens.
func (a *CognitoAuthenticator) Exchange(ctx context.Context, code string) (*TokenSet, error) {
	token, err := a.config.Exchange(a.clientContext(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	set := &TokenSet{
		AccessToken: token.AccessToken,
		Expiry:      token.Expiry,
	}
	if rawIDToken, ok := token.Extra("id_token").(string); ok {
		set.IDToken = rawIDToken
	}
	return set, nil
}

// DecodeClaims reads identity claims from a raw ID token. The signature is
// verified when an issuer was configured.
func (a *CognitoAuthenticator) DecodeClaims(ctx context.Context, rawIDToken string) (Claims, error) {
	var claims idTokenClaims

	if a.verifier != nil {
		idToken, err := a.verifier.Verify(a.clientContext(ctx), rawIDToken)
		if err != nil {
			return Claims{}, fmt.Errorf("verify id token: %w", err)
		}
		if err := idToken.Claims(&claims); err != nil {
			return Claims{}, fmt.Errorf("parse claims: %w", err)
		}
		return claims.toClaims(), nil
	}

	mapClaims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(rawIDToken, mapClaims); err != nil {
		return Claims{}, fmt.Errorf("decode id token: %w", err)
	}
	if err := claims.fromMap(mapClaims); err != nil {
		return Claims{}, fmt.Errorf("parse claims: %w", err)
	}
	return claims.toClaims(), nil
}

// FetchUserInfo asks the provider's userinfo endpoint for the token's claims.
func (a *CognitoAuthenticator) FetchUserInfo(ctx context.Context, accessToken string) (Claims, error) {
	if a.provider == nil {
		return Claims{}, ErrUserInfoUnavailable
	}

	info, err := a.provider.UserInfo(a.clientContext(ctx), oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))
	if err != nil {
		return Claims{}, fmt.Errorf("fetch userinfo: %w", err)
	}

	var claims idTokenClaims
	if err := info.Claims(&claims); err != nil {
		return Claims{}, fmt.Errorf("parse userinfo: %w", err)
	}
	if claims.Subject == "" {
		claims.Subject = info.Subject
	}
	if claims.Email == "" {
		claims.Email = info.Email
		claims.EmailVerified = flexBool(info.EmailVerified)
	}
	return claims.toClaims(), nil
}

// LogoutURL returns the hosted logout endpoint that bounces back to the site.
func (a *CognitoAuthenticator) LogoutURL() string {
	query := url.Values{}
	query.Set("client_id", a.config.ClientID)
	query.Set("logout_uri", a.logoutURI)
	return a.baseURL + "/logout?" + query.Encode()
}

func (a *CognitoAuthenticator) clientContext(ctx context.Context) context.Context {
	if a.httpClient == nil {
		return ctx
	}
	return oidc.ClientContext(ctx, a.httpClient)
}

func normalizeDomain(domain string) string {
	domain = strings.TrimRight(strings.TrimSpace(domain), "/")
	if strings.HasPrefix(domain, "http://") || strings.HasPrefix(domain, "https://") {
		return domain
	}
	return "https://" + domain
}
