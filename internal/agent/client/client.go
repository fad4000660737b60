// Package client is the typed HTTP client the scanner agent uses to talk to
// the ingestion backend.
package client

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/go-resty/resty/v2"
)

// ScanResponse mirrors the backend reply to POST /recibir_escaneo.
type ScanResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	Duplicado     bool   `json:"duplicado"`
	EscaneosTotal int    `json:"escaneos_total"`
}

// ControlResponse mirrors the backend reply to POST /recibir_control_periodico.
type ControlResponse struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	TotalControles int    `json:"total_controles"`
}

// SubmitError carries a short human-readable reason the operator can act on,
// distinguishing DNS, timeout, TLS, transport and server-side failures.
type SubmitError struct {
	Reason string
	Err    error
}

func (e *SubmitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *SubmitError) Unwrap() error { return e.Err }

// Reason extracts the human-readable reason from an error returned by this
// package, falling back to the error text.
func Reason(err error) string {
	var se *SubmitError
	if errors.As(err, &se) {
		return se.Reason
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

type Client struct {
	http   *resty.Client
	origin string
}

// New builds a client. origin identifies this device in the backend audit
// trail; empty lets the backend apply its default.
func New(baseURL string, timeout time.Duration, origin string) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &Client{http: c, origin: origin}
}

// SendScan delivers one captured scan. A non-nil error is always a *SubmitError.
func (c *Client) SendScan(ctx context.Context, url, nroOrden string) (*ScanResponse, error) {
	body := map[string]string{"url": url}
	if nroOrden != "" {
		body["nro_orden"] = nroOrden
	}
	if c.origin != "" {
		body["origen"] = c.origin
	}

	var out ScanResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		SetError(&out).
		Post("/recibir_escaneo")
	if err != nil {
		return nil, classify(err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		reason := fmt.Sprintf("Error HTTP %d", resp.StatusCode())
		if out.Message != "" {
			reason = out.Message
		}
		return nil, &SubmitError{Reason: reason}
	}
	if !out.Success {
		reason := out.Message
		if reason == "" {
			reason = "Rechazado por el servidor"
		}
		return nil, &SubmitError{Reason: reason}
	}
	return &out, nil
}

// SendPeriodicControl delivers a periodic control reading for an already
// registered extinguisher.
func (c *Client) SendPeriodicControl(ctx context.Context, url, estadoCarga, chapaBaliza, comentario string) (*ControlResponse, error) {
	body := map[string]string{
		"url":          url,
		"estado_carga": estadoCarga,
		"chapa_baliza": chapaBaliza,
		"comentario":   comentario,
	}
	if c.origin != "" {
		body["origen"] = c.origin
	}

	var out ControlResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		SetError(&out).
		Post("/recibir_control_periodico")
	if err != nil {
		return nil, classify(err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		reason := fmt.Sprintf("Error HTTP %d", resp.StatusCode())
		if out.Message != "" {
			reason = out.Message
		}
		return nil, &SubmitError{Reason: reason}
	}
	if !out.Success {
		reason := out.Message
		if reason == "" {
			reason = "Rechazado por el servidor"
		}
		return nil, &SubmitError{Reason: reason}
	}
	return &out, nil
}

func classify(err error) *SubmitError {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &SubmitError{Reason: "No se pudo resolver el servidor", Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &SubmitError{Reason: "Tiempo de espera agotado", Err: err}
	}
	var (
		recHdr   tls.RecordHeaderError
		certErr  *tls.CertificateVerificationError
		hostErr  x509.HostnameError
		authErr  x509.UnknownAuthorityError
		validErr x509.CertificateInvalidError
	)
	if errors.As(err, &recHdr) || errors.As(err, &certErr) ||
		errors.As(err, &hostErr) || errors.As(err, &authErr) || errors.As(err, &validErr) {
		return &SubmitError{Reason: "Error de certificado SSL", Err: err}
	}
	return &SubmitError{Reason: "Error de red", Err: err}
}
