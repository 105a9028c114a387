// Package client provides OAuth2 client setup for the Google APIs.
package client

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	// callbackPort is the port for the local OAuth callback server.
	callbackPort = 8085
	// callbackPath is the path for the OAuth callback.
	callbackPath = "/callback"
	// flowTimeout is how long to wait for the OAuth callback.
	flowTimeout = 5 * time.Minute
)

// New creates an authenticated HTTP client from a client secret file and a
// cached token. When no valid token exists it fails unless interactive is
// set, in which case it runs the local-callback consent flow and caches the
// resulting token.
func New(secretFile, tokenFile string, interactive bool, scopes ...string) (*http.Client, error) {
	b, err := os.ReadFile(secretFile)
	if err != nil {
		return nil, fmt.Errorf("reading client secret file: %w", err)
	}

	oauthCfg, err := google.ConfigFromJSON(b, scopes...)
	if err != nil {
		return nil, fmt.Errorf("parsing client secret: %w", err)
	}

	tok, err := tokenFromFile(tokenFile)
	if err != nil {
		if !interactive {
			return nil, fmt.Errorf("no cached token at %s: run `budget-agent setup` first", tokenFile)
		}
		slog.Info("no existing token found, starting OAuth flow")
		tok, err = tokenFromWeb(oauthCfg)
		if err != nil {
			return nil, err
		}
		if err := saveToken(tokenFile, tok); err != nil {
			return nil, fmt.Errorf("saving token: %w", err)
		}
	}

	return oauthCfg.Client(context.Background(), tok), nil
}

// tokenFromWeb runs the browser consent flow against a local callback server.
func tokenFromWeb(cfg *oauth2.Config) (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(context.Background(), flowTimeout)
	defer cancel()

	cfg.RedirectURL = fmt.Sprintf("http://localhost:%d%s", callbackPort, callbackPath)

	state, err := generateState()
	if err != nil {
		return nil, fmt.Errorf("generating state token: %w", err)
	}

	codeChan := make(chan string, 1)
	errChan := make(chan error, 1)

	server, err := startCallbackServer(ctx, state, codeChan, errChan)
	if err != nil {
		return nil, fmt.Errorf("starting callback server: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Warn("error shutting down callback server", "error", err)
		}
	}()

	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline)
	fmt.Printf("\nVisit this URL to authorize budget-agent:\n%s\n\n", authURL)

	select {
	case code := <-codeChan:
		tok, err := cfg.Exchange(context.Background(), code)
		if err != nil {
			return nil, fmt.Errorf("exchanging authorization code: %w", err)
		}
		fmt.Println("Authentication successful.")
		return tok, nil
	case err := <-errChan:
		return nil, fmt.Errorf("oauth callback error: %w", err)
	case <-ctx.Done():
		return nil, fmt.Errorf("oauth flow timed out after %v", flowTimeout)
	}
}

func startCallbackServer(ctx context.Context, expectedState string, codeChan chan<- string, errChan chan<- error) (*http.Server, error) {
	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, func(w http.ResponseWriter, r *http.Request) {
		if state := r.URL.Query().Get("state"); state != expectedState {
			errChan <- fmt.Errorf("invalid state parameter")
			http.Error(w, "Invalid state parameter", http.StatusBadRequest)
			return
		}

		if errMsg := r.URL.Query().Get("error"); errMsg != "" {
			errChan <- fmt.Errorf("%s: %s", errMsg, r.URL.Query().Get("error_description"))
			http.Error(w, fmt.Sprintf("Authentication failed: %s", errMsg), http.StatusBadRequest)
			return
		}

		code := r.URL.Query().Get("code")
		if code == "" {
			errChan <- fmt.Errorf("no authorization code received")
			http.Error(w, "No authorization code received", http.StatusBadRequest)
			return
		}

		fmt.Fprintln(w, "Authentication successful. You can close this window.")
		codeChan <- code
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", callbackPort),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc := net.ListenConfig{}
	listener, err := lc.Listen(ctx, "tcp", server.Addr)
	if err != nil {
		return nil, fmt.Errorf("port %d unavailable: %w", callbackPort, err)
	}

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	return server, nil
}

func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

func saveToken(path string, token *oauth2.Token) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("creating token directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating token file: %w", err)
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(token)
}
