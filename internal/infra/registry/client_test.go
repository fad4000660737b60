package registry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"
)

func newTestClient(domain string) *Client {
	return New(Options{
		Domain:         domain,
		UserAgent:      "test-agent",
		ConnectTimeout: 2 * time.Second,
		Timeout:        5 * time.Second,
	}, zap.NewNop())
}

func TestFetchDecodesLatin1(t *testing.T) {
	page := `<table><tr>
	  <td class="frTextoTabla">Domicilio instalación</td>
	  <td class="frTextoTablaRegistroInfo">PEÑA 2450</td>
	</tr></table>`
	latin1, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(page))
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=ISO-8859-1")
		w.Write(latin1)
	}))
	defer srv.Close()

	c := newTestClient("127.0.0.1")
	got, err := c.Fetch(context.Background(), srv.URL+"/matafuegos/datosEstampilla.jsp?id=1")
	require.NoError(t, err)

	assert.Equal(t, "PEÑA 2450", got.Fields.Domicilio)
	assert.NotEmpty(t, got.RawHTML)
}

func TestFetchRejectsForeignDomain(t *testing.T) {
	c := newTestClient("dghpsh.agcontrol.gob.ar")

	_, err := c.Fetch(context.Background(), "https://example.com/matafuegos/datosEstampilla.jsp?id=1")
	assert.Error(t, err)
}

func TestFetchNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "se produjo un error", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient("127.0.0.1")
	_, err := c.Fetch(context.Background(), srv.URL+"/matafuegos/datosEstampilla.jsp?id=1")
	assert.ErrorContains(t, err, "HTTP 500")
}

func TestFetchPageWithoutData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>Estampilla inexistente</body></html>`))
	}))
	defer srv.Close()

	c := newTestClient("127.0.0.1")
	_, err := c.Fetch(context.Background(), srv.URL+"/matafuegos/datosEstampilla.jsp?id=999")
	assert.ErrorIs(t, err, ErrNoData)
}
