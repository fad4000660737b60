package registry

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"

	domain "github.com/hst-srl/matafuegos-sync/internal/domain/extinguishers"
)

// Client scrapes datosEstampilla pages from the AGC registry. The site has a
// misconfigured certificate chain and serves Latin-1, so verification is
// disabled and the body is re-decoded to UTF-8 before parsing.
type Client struct {
	http   *resty.Client
	domain string
	logger *zap.Logger
}

type Options struct {
	Domain         string
	UserAgent      string
	ConnectTimeout time.Duration
	Timeout        time.Duration
}

func New(opts Options, logger *zap.Logger) *Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: opts.ConnectTimeout,
		}).DialContext,
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	}

	client := resty.New().
		SetTransport(transport).
		SetTimeout(opts.Timeout).
		SetHeader("User-Agent", opts.UserAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml").
		SetHeader("Accept-Language", "es-AR,es;q=0.9")

	return &Client{http: client, domain: opts.Domain, logger: logger}
}

// Fetch gets and parses one stamp page.
func (c *Client) Fetch(ctx context.Context, url string) (*domain.RegistryPage, error) {
	if !strings.Contains(strings.ToLower(url), strings.ToLower(c.domain)) {
		return nil, fmt.Errorf("url fuera del dominio AGC: %s", url)
	}

	resp, err := c.http.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("GET %s: HTTP %d", url, resp.StatusCode())
	}
	body := resp.Body()
	if len(body) == 0 {
		return nil, fmt.Errorf("GET %s: respuesta vacia", url)
	}

	// AGC declares ISO-8859-1
	utf8Body, err := charmap.ISO8859_1.NewDecoder().Bytes(body)
	if err != nil {
		return nil, fmt.Errorf("decoding latin-1 body: %w", err)
	}

	fields, err := ParseStampPage(utf8Body)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", url, err)
	}

	c.logger.Debug("pagina AGC obtenida",
		zap.String("url", url),
		zap.Int("bytes", len(utf8Body)),
	)

	return &domain.RegistryPage{Fields: fields, RawHTML: utf8Body}, nil
}
