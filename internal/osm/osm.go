// Package osm extracts ground-truth map features from OpenStreetMap XML
// extracts.
//
// Only nodes matter here: a traffic sign or signal in OSM is a node
// carrying a tag like highway=traffic_signals or traffic_sign=*. The
// parser streams the document so city-sized extracts do not need to fit
// in memory as a DOM.
package osm

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"

	"github.com/sentinelmap/signaudit/internal/geo"
)

// Node is a map feature selected by tag, read-only ground truth for the
// reconciler.
type Node struct {
	ID  string  `json:"id"`
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
	// Tag is the value of the matched tag, e.g. "traffic_signals" for
	// highway=traffic_signals, or "stop" for traffic_sign=stop.
	Tag string `json:"tag,omitempty"`
}

type xmlNode struct {
	ID   string   `xml:"id,attr"`
	Lat  float64  `xml:"lat,attr"`
	Lon  float64  `xml:"lon,attr"`
	Tags []xmlTag `xml:"tag"`
}

type xmlTag struct {
	K string `xml:"k,attr"`
	V string `xml:"v,attr"`
}

// Parse reads an OSM XML document and returns the nodes carrying tagKey.
// A non-empty tagValue narrows the match to that exact value; empty
// matches any value for the key. Node coordinates are validated so bad
// extracts fail here rather than inside the geometry.
func Parse(r io.Reader, tagKey, tagValue string) ([]Node, error) {
	if tagKey == "" {
		return nil, fmt.Errorf("tag key must not be empty")
	}

	dec := xml.NewDecoder(r)
	var nodes []Node

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse OSM XML: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "node" {
			continue
		}

		var n xmlNode
		if err := dec.DecodeElement(&n, &start); err != nil {
			return nil, fmt.Errorf("decode node: %w", err)
		}

		for _, tag := range n.Tags {
			if tag.K != tagKey {
				continue
			}
			if tagValue != "" && tag.V != tagValue {
				continue
			}
			if err := (geo.Coordinate{Lat: n.Lat, Lon: n.Lon}).Validate(); err != nil {
				return nil, fmt.Errorf("node %s: %w", n.ID, err)
			}
			nodes = append(nodes, Node{ID: n.ID, Lat: n.Lat, Lon: n.Lon, Tag: tag.V})
			break
		}
	}

	return nodes, nil
}

// ParseFile opens path and parses it with Parse.
func ParseFile(path, tagKey, tagValue string) ([]Node, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open OSM file: %w", err)
	}
	defer f.Close()
	return Parse(f, tagKey, tagValue)
}

// Coordinates strips nodes down to bare coordinates in input order, the
// shape the reconciler consumes.
func Coordinates(nodes []Node) []geo.Coordinate {
	coords := make([]geo.Coordinate, len(nodes))
	for i, n := range nodes {
		coords[i] = geo.Coordinate{Lat: n.Lat, Lon: n.Lon}
	}
	return coords
}
