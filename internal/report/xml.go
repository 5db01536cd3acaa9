package report

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"ridesim/internal/simtime"
	"ridesim/internal/transport"
)

type tripInfoXML struct {
	XMLName     xml.Name
	WaitingTime string `xml:"waiting-time,attr"`
	Vehicle     string `xml:"vehicle,attr"`
	Depart      string `xml:"depart,attr"`
	Arrival     string `xml:"arrival,attr"`
	ArrivalPos  string `xml:"arrival-position,attr"`
	Duration    string `xml:"duration,attr"`
	RouteLength string `xml:"route-length,attr"`
}

type routeXML struct {
	XMLName     xml.Name
	From        string `xml:"from,attr,omitempty"`
	To          string `xml:"to,attr"`
	StopID      string `xml:"stop-id,attr,omitempty"`
	Lines       string `xml:"lines,attr"`
	Intended    string `xml:"intended,attr,omitempty"`
	DepartTime  string `xml:"depart-time,attr,omitempty"`
	RouteLength string `xml:"route-length,attr,omitempty"`
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func joinLines(lines []string) string { return strings.Join(lines, " ") }

func tripInfoElement(ti transport.TripInfo) tripInfoXML {
	return tripInfoXML{
		XMLName:     xml.Name{Local: ti.Tag},
		WaitingTime: ti.WaitingTime.OrUnset(),
		Vehicle:     ti.Vehicle,
		Depart:      ti.Depart.OrUnset(),
		Arrival:     ti.Arrival.OrUnset(),
		ArrivalPos:  formatFloat(ti.ArrivalPos),
		Duration:    ti.Duration.OrUnset(),
		RouteLength: formatFloat(ti.RouteLength),
	}
}

func routeElement(rec transport.RouteRecord) routeXML {
	el := routeXML{
		XMLName:  xml.Name{Local: rec.Tag},
		From:     rec.From,
		To:       rec.To,
		StopID:   rec.StopID,
		Lines:    joinLines(rec.Lines),
		Intended: rec.Intended,
	}
	if rec.IntendedDepart.IsSet() {
		el.DepartTime = rec.IntendedDepart.String()
	}
	if rec.RouteLength != nil {
		el.RouteLength = formatFloat(*rec.RouteLength)
	}
	return el
}

// xmlDoc writes a root element whose children are added one transportable
// at a time.
type xmlDoc struct {
	enc  *xml.Encoder
	root string
}

func newXMLDoc(w io.Writer, root string) (*xmlDoc, error) {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return nil, err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "    ")
	if err := enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: root}}); err != nil {
		return nil, err
	}
	return &xmlDoc{enc: enc, root: root}, nil
}

func (d *xmlDoc) open(tag, id string) error {
	return d.enc.EncodeToken(xml.StartElement{
		Name: xml.Name{Local: tag},
		Attr: []xml.Attr{{Name: xml.Name{Local: "id"}, Value: id}},
	})
}

func (d *xmlDoc) closeTag(tag string) error {
	return d.enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: tag}})
}

func (d *xmlDoc) Close() error {
	if err := d.closeTag(d.root); err != nil {
		return err
	}
	return d.enc.Flush()
}

// TripInfoWriter writes one <personinfo>/<containerinfo> element with its
// ride records per finished transportable.
type TripInfoWriter struct{ doc *xmlDoc }

func NewTripInfoWriter(w io.Writer) (*TripInfoWriter, error) {
	doc, err := newXMLDoc(w, "tripinfos")
	if err != nil {
		return nil, err
	}
	return &TripInfoWriter{doc: doc}, nil
}

func (w *TripInfoWriter) Write(t *transport.Transportable, now simtime.Time) error {
	tag := t.Kind().String() + "info"
	if err := w.doc.open(tag, t.ID()); err != nil {
		return err
	}
	for _, r := range Rides(t) {
		if err := w.doc.enc.Encode(tripInfoElement(r.TripInfo(t.Kind(), now))); err != nil {
			return fmt.Errorf("tripinfo of %s %q: %w", t.Kind(), t.ID(), err)
		}
	}
	return w.doc.closeTag(tag)
}

func (w *TripInfoWriter) Close() error { return w.doc.Close() }

// RouteWriter writes the rides of each transportable so that they can be
// simulated again.
type RouteWriter struct {
	doc         *xmlDoc
	routeLength bool
}

func NewRouteWriter(w io.Writer, withRouteLength bool) (*RouteWriter, error) {
	doc, err := newXMLDoc(w, "routes")
	if err != nil {
		return nil, err
	}
	return &RouteWriter{doc: doc, routeLength: withRouteLength}, nil
}

func (w *RouteWriter) Write(t *transport.Transportable) error {
	tag := t.Kind().String()
	if err := w.doc.open(tag, t.ID()); err != nil {
		return err
	}
	for _, s := range t.Plan() {
		r, ok := s.(*transport.RideStage)
		if !ok {
			continue
		}
		rec := r.RouteRecord(t.Kind(), w.routeLength)
		if err := w.doc.enc.Encode(routeElement(rec)); err != nil {
			return fmt.Errorf("route of %s %q: %w", t.Kind(), t.ID(), err)
		}
		if rec.StopName != "" {
			if err := w.doc.enc.EncodeToken(xml.Comment(" " + commentSafe(rec.StopName) + " ")); err != nil {
				return err
			}
		}
	}
	return w.doc.closeTag(tag)
}

func (w *RouteWriter) Close() error { return w.doc.Close() }

func commentSafe(s string) string {
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	return strings.TrimSuffix(s, "-")
}
