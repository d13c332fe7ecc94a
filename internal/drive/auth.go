package drive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"picbrand/internal/models"
)

// Authorize runs the installed-app OAuth flow on a loopback listener and
// writes the resulting token to cfg.TokenFile. showURL receives the consent
// URL the user has to open.
func Authorize(ctx context.Context, cfg models.DriveConfig, logger *zap.Logger, showURL func(string)) error {
	const op = "drive.Authorize"

	if logger == nil {
		logger = zap.NewNop()
	}
	conf, err := oauthConfig(cfg)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	ln, err := net.Listen("tcp", cfg.AuthListenAddr)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	conf.RedirectURL = "http://" + ln.Addr().String() + "/"

	state := uuid.NewString()
	codes := make(chan string, 1)
	srv := &http.Server{Handler: callbackHandler(state, codes)}
	go srv.Serve(ln) //nolint:errcheck // returns ErrServerClosed on shutdown
	defer srv.Close()

	showURL(conf.AuthCodeURL(state, oauth2.AccessTypeOffline))

	var code string
	select {
	case code = <-codes:
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	}

	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := saveToken(cfg.TokenFile, tok); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	logger.Info("drive token saved", zap.String("path", cfg.TokenFile))
	return nil
}

func callbackHandler(state string, codes chan<- string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}
		code := q.Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		}
		select {
		case codes <- code:
			fmt.Fprintln(w, "Authorization complete. You can close this window.")
		default:
			http.Error(w, "authorization already received", http.StatusConflict)
		}
	})
}

func loadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, err
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, errors.New("token file holds no credentials")
	}
	return &tok, nil
}

func saveToken(path string, tok *oauth2.Token) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	data, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
