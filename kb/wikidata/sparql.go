package wikidata

import (
	"context"
	"encoding/json"
	"io"
	"iter"
	"strings"

	"github.com/teranos/softwaremap/errors"
	"github.com/teranos/softwaremap/kb"
)

// EntityPrefix is the URI prefix of Wikidata items
const EntityPrefix = "http://www.wikidata.org/entity/"

// Term is one bound value in a SPARQL JSON result
type Term struct {
	Type     string `json:"type"` // uri, literal, bnode
	Value    string `json:"value"`
	Lang     string `json:"xml:lang,omitempty"`
	Datatype string `json:"datatype,omitempty"`
}

// Binding maps variable names to their values for one solution
type Binding map[string]Term

// Result is a fully decoded SPARQL JSON result
type Result struct {
	Vars     []string
	Bindings []Binding
}

// EntityID extracts the item ID from a URI-valued variable
func (b Binding) EntityID(name string) (string, error) {
	term, ok := b[name]
	if !ok {
		return "", errors.NewMalformedResultError("missing ?%s", name)
	}
	if term.Type != "uri" {
		return "", errors.NewMalformedResultError("?%s is a %s, want uri", name, term.Type)
	}
	id := term.Value[strings.LastIndexByte(term.Value, '/')+1:]
	if !strings.HasPrefix(term.Value, EntityPrefix) || !kb.ValidEntityID(id) {
		return "", errors.NewMalformedResultError("?%s is not an item URI: %q", name, term.Value)
	}
	return id, nil
}

// Literal returns a literal-valued variable. Unknown values ("somevalue")
// come back as blank nodes or genid URIs and are rejected.
func (b Binding) Literal(name string) (string, error) {
	term, ok := b[name]
	if !ok {
		return "", errors.NewMalformedResultError("missing ?%s", name)
	}
	if term.Type != "literal" && term.Type != "typed-literal" {
		return "", errors.NewMalformedResultError("?%s is a %s, want literal", name, term.Type)
	}
	return term.Value, nil
}

// Label returns an optional literal, falling back to fallback when unbound
func (b Binding) Label(name, fallback string) string {
	if term, ok := b[name]; ok && term.Value != "" {
		return term.Value
	}
	return fallback
}

// Query executes a SPARQL query and decodes the whole result.
// Prefer the streaming methods for large result sets.
func (c *Client) Query(ctx context.Context, sparql string) (*Result, error) {
	resp, err := c.execute(ctx, sparql)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var raw struct {
		Head struct {
			Vars []string `json:"vars"`
		} `json:"head"`
		Results struct {
			Bindings []Binding `json:"bindings"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, classifyDecodeError(ctx, err)
	}
	return &Result{Vars: raw.Head.Vars, Bindings: raw.Results.Bindings}, nil
}

// Bindings executes sparql and yields solutions as they are decoded from the
// response body. Each range over the sequence issues a fresh request.
// A solution that is not a JSON object yields ErrMalformedResult and the
// sequence continues; transport failures end it.
func (c *Client) Bindings(ctx context.Context, sparql string) iter.Seq2[Binding, error] {
	return func(yield func(Binding, error) bool) {
		resp, err := c.execute(ctx, sparql)
		if err != nil {
			yield(nil, err)
			return
		}
		defer resp.Body.Close()

		dec := newBindingDecoder(resp.Body)
		for {
			b, err := dec.next()
			if err == io.EOF {
				return
			}
			if err != nil {
				if errors.IsPerRowError(err) {
					if !yield(nil, err) {
						return
					}
					continue
				}
				yield(nil, classifyDecodeError(ctx, err))
				return
			}
			if !yield(b, nil) {
				return
			}
		}
	}
}

// bindingDecoder walks {"head":…,"results":{"bindings":[…]}} token by token
// so only one solution is held in memory at a time.
type bindingDecoder struct {
	dec     *json.Decoder
	started bool
	done    bool
}

func newBindingDecoder(r io.Reader) *bindingDecoder {
	return &bindingDecoder{dec: json.NewDecoder(r)}
}

func (d *bindingDecoder) next() (Binding, error) {
	if d.done {
		return nil, io.EOF
	}
	if !d.started {
		d.started = true
		found, err := d.seekBindings()
		if err == io.EOF {
			return nil, io.ErrUnexpectedEOF
		}
		if err != nil {
			return nil, err
		}
		if !found {
			d.done = true
			return nil, io.EOF
		}
	}

	if !d.dec.More() {
		d.done = true
		// Closing ']' of bindings
		if _, err := d.dec.Token(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}

	var raw json.RawMessage
	if err := d.dec.Decode(&raw); err != nil {
		return nil, err
	}
	var b Binding
	if err := json.Unmarshal(raw, &b); err != nil || b == nil {
		return nil, errors.NewMalformedResultError("solution is not an object: %.80s", string(raw))
	}
	return b, nil
}

// seekBindings advances to just inside results.bindings. A document without
// a bindings array is reported as not found (ASK results, empty bodies).
func (d *bindingDecoder) seekBindings() (bool, error) {
	if err := d.expectDelim('{'); err != nil {
		return false, err
	}
	for d.dec.More() {
		key, err := d.key()
		if err != nil {
			return false, err
		}
		if key != "results" {
			if err := d.skip(); err != nil {
				return false, err
			}
			continue
		}
		if err := d.expectDelim('{'); err != nil {
			return false, err
		}
		for d.dec.More() {
			inner, err := d.key()
			if err != nil {
				return false, err
			}
			if inner == "bindings" {
				return true, d.expectDelim('[')
			}
			if err := d.skip(); err != nil {
				return false, err
			}
		}
		return false, nil
	}
	return false, nil
}

func (d *bindingDecoder) key() (string, error) {
	tok, err := d.dec.Token()
	if err != nil {
		return "", err
	}
	key, ok := tok.(string)
	if !ok {
		return "", errors.Newf("expected object key, got %v", tok)
	}
	return key, nil
}

func (d *bindingDecoder) skip() error {
	var discard json.RawMessage
	return d.dec.Decode(&discard)
}

func (d *bindingDecoder) expectDelim(want json.Delim) error {
	tok, err := d.dec.Token()
	if err != nil {
		return err
	}
	if got, ok := tok.(json.Delim); !ok || got != want {
		return errors.Newf("expected %q, got %v", want, tok)
	}
	return nil
}

// classifyDecodeError maps body failures onto the pipeline taxonomy. WDQS
// reports server-side timeouts by truncating a 200 response, so any failure
// to read the document as a whole is a failed call rather than a bad row.
func classifyDecodeError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return errors.Wrap(ctx.Err(), "query cancelled while reading results")
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return errors.Mark(errors.Wrap(err, "result stream interrupted"), errors.ErrEndpointUnreachable)
	}
	return errors.Mark(errors.Wrap(err, "undecodable SPARQL response"), errors.ErrEndpointUnreachable)
}
