package registry

import (
	"bytes"
	"errors"
	"strings"

	"golang.org/x/net/html"

	domain "github.com/hst-srl/matafuegos-sync/internal/domain/extinguishers"
)

// The registry renders data as label cells followed by value cells, paired by
// position. These class names are the two structural markers the scrape
// depends on.
const (
	labelCellClass = "frTextoTabla"
	valueCellClass = "frTextoTablaRegistroInfo"
)

// ErrNoData means the page was valid HTML but carried no label cells at all,
// typically an error shell for an unknown stamp id.
var ErrNoData = errors.New("sin datos en la pagina AGC")

// ParseStampPage extracts the label/value table of a datosEstampilla page,
// already decoded to UTF-8.
func ParseStampPage(body []byte) (domain.EnrichmentFields, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return domain.EnrichmentFields{}, err
	}

	var labels, values []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "td" {
			switch nodeClass(n) {
			case labelCellClass:
				labels = append(labels, nodeText(n))
			case valueCellClass:
				values = append(values, nodeText(n))
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if len(labels) == 0 {
		return domain.EnrichmentFields{}, ErrNoData
	}

	// pair i-th label with i-th value, up to the shorter sequence
	pairs := make(map[string]string, len(labels))
	for i := 0; i < len(labels) && i < len(values); i++ {
		pairs[labels[i]] = values[i]
	}

	return mapFields(pairs), nil
}

// Registry label strings, verbatim (including accents) as AGC renders them.
func mapFields(pairs map[string]string) domain.EnrichmentFields {
	return domain.EnrichmentFields{
		Domicilio:              pairs["Domicilio instalación"],
		Fabricante:             pairs["Empresa fabricante"],
		Recargadora:            pairs["Empresa recargadora"],
		FechaMantenimiento:     pairs["Fecha mantenimiento"],
		FechaVencMantenimiento: pairs["Fecha vencimiento mantenimiento"],
		AgenteExtintor:         pairs["Agente extintor"],
		Capacidad:              pairs["Capacidad"],
		FechaFabricacion:       pairs["Fecha fabricación"],
		VencVidaUtil:           pairs["Fecha vencimiento vida util"],
		VencPH:                 pairs["Fecha vencimiento PH"],
		NroTarjeta:             pairs["Nro. tarjeta"],
		NroExtintor:            pairs["Nro. extintor"],
		Uso:                    pairs["Uso"],
	}
}

func nodeClass(n *html.Node) string {
	for _, a := range n.Attr {
		if a.Key == "class" {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}
