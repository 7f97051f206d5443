package opds

import "strings"

const relAcquisition = "http://opds-spec.org/acquisition"

// Relation is the kind of an acquisition link.
type Relation int

const (
	RelationGeneric Relation = iota
	RelationBorrow
	RelationOpenAccess
	RelationBuy
	RelationSample
	RelationSubscribe
)

func (r Relation) String() string {
	switch r {
	case RelationBorrow:
		return "borrow"
	case RelationOpenAccess:
		return "open-access"
	case RelationBuy:
		return "buy"
	case RelationSample:
		return "sample"
	case RelationSubscribe:
		return "subscribe"
	default:
		return "generic"
	}
}

// ParseRelation maps an acquisition rel URI to a Relation. Unknown
// acquisition subtypes are treated as generic.
func ParseRelation(rel string) Relation {
	switch strings.TrimPrefix(rel, relAcquisition) {
	case "/borrow":
		return RelationBorrow
	case "/open-access":
		return RelationOpenAccess
	case "/buy":
		return RelationBuy
	case "/sample", "/preview":
		return RelationSample
	case "/subscribe":
		return RelationSubscribe
	default:
		return RelationGeneric
	}
}

func isAcquisitionRel(rel string) bool {
	return strings.HasPrefix(rel, relAcquisition) ||
		rel == "preview"
}

// Acquisition is an acquisition link, possibly wrapping indirect
// acquisitions (for example a borrow link that yields an ACSM file that
// in turn yields an EPUB).
type Acquisition struct {
	Relation Relation
	URI      string
	Type     string
	Indirect []IndirectAcquisition
}

// IndirectAcquisition is a nested media type reachable through an
// acquisition.
type IndirectAcquisition struct {
	Type     string
	Indirect []IndirectAcquisition
}

// Paths linearizes the acquisition tree into the ordered media-type
// sequences a client would traverse, outermost first.
func (a Acquisition) Paths() [][]string {
	if len(a.Indirect) == 0 {
		return [][]string{{a.Type}}
	}
	var out [][]string
	for _, ind := range a.Indirect {
		for _, tail := range ind.paths() {
			path := make([]string, 0, len(tail)+1)
			path = append(path, a.Type)
			path = append(path, tail...)
			out = append(out, path)
		}
	}
	return out
}

func (ia IndirectAcquisition) paths() [][]string {
	if len(ia.Indirect) == 0 {
		return [][]string{{ia.Type}}
	}
	var out [][]string
	for _, child := range ia.Indirect {
		for _, tail := range child.paths() {
			out = append(out, append([]string{ia.Type}, tail...))
		}
	}
	return out
}

func convertIndirect(in []indirectAcquisition) []IndirectAcquisition {
	if len(in) == 0 {
		return nil
	}
	out := make([]IndirectAcquisition, len(in))
	for i, ia := range in {
		out[i] = IndirectAcquisition{
			Type:     ia.Type,
			Indirect: convertIndirect(ia.Children),
		}
	}
	return out
}
