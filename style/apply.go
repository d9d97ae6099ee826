package style

import (
	"fmt"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"tbc/dom"
	"tbc/dom/selector"
)

// Computed holds declarations which won the cascade for an element.
type Computed map[string]Value

// Names returns property names in sorted order.
func (c Computed) Names() []string {
	return sortedNames(c)
}

func (c Computed) String() string {
	var sb strings.Builder
	for i, name := range c.Names() {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(name + ": " + c[name].String())
	}
	return sb.String()
}

// rank orders competing declarations: importance, then specificity, then
// source order.
type rank struct {
	important bool
	spec      selector.Specificity
	order     int
}

func (r rank) less(o rank) bool {
	if r.important != o.important {
		return o.important
	}
	if r.spec != o.spec {
		return r.spec.Less(o.spec)
	}
	return r.order < o.order
}

// binding is a rule selector attached to the walk.
type binding struct {
	rule    *Rule
	order   int
	sel     *selector.Selector
	matcher *selector.Matcher
}

// Applier applies stylesheets to document trees.
type Applier struct {
	log    *zap.Logger
	medium string
	opts   []dom.Option
}

// ApplierOption configures Applier.
type ApplierOption func(*Applier)

// WithMedium selects media type rules are evaluated for.
func WithMedium(medium string) ApplierOption {
	return func(a *Applier) {
		a.medium = medium
	}
}

// WithStackOptions passes options to the document stack used for the walk.
func WithStackOptions(opts ...dom.Option) ApplierOption {
	return func(a *Applier) {
		a.opts = append(a.opts, opts...)
	}
}

// NewApplier returns applier, by default rules are evaluated for Medium.
func NewApplier(log *zap.Logger, opts ...ApplierOption) *Applier {
	if log == nil {
		log = zap.NewNop()
	}
	a := &Applier{log: log.Named("style"), medium: Medium}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Apply matches every rule of sheet against the tree under root in a single
// walk and computes winning declarations per element. Selectors with pseudo
// elements or dynamic pseudo classes other than :link never apply. Matching
// failures of individual selectors are aggregated into the returned error,
// computed styles are still returned for everything else.
func (a *Applier) Apply(sheet *Stylesheet, root *dom.Node) (map[*dom.Node]Computed, error) {
	s := dom.NewStack(a.opts...)
	defer s.Done()

	var bindings []binding
	for i := range sheet.Rules {
		r := &sheet.Rules[i]
		if !r.Media.Evaluate(a.medium) {
			a.log.Debug("Skipping rule for other media", zap.String("selector", r.Raw), zap.Stringer("media", r.Media))
			continue
		}
		for _, sel := range r.Selectors {
			if sel.Pseudo&^selector.PseudoLink != 0 {
				if sel.Pseudo.Elements() != 0 {
					a.log.Debug("Skipping pseudo element selector", zap.Stringer("selector", sel))
				}
				continue
			}
			m := selector.NewMatcher(sel, a.log)
			m.Attach(s)
			bindings = append(bindings, binding{rule: r, order: i, sel: sel, matcher: m})
		}
	}
	if err := s.Walk(root); err != nil {
		return nil, fmt.Errorf("unable to apply stylesheet: %w", err)
	}

	var (
		errs     error
		computed = make(map[*dom.Node]Computed)
		ranks    = make(map[*dom.Node]map[string]rank)
	)
	for _, b := range bindings {
		if err := b.matcher.Err(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("selector %q: %w", b.sel, err))
			continue
		}
		spec := b.sel.Specificity()
		for _, n := range b.matcher.Matches() {
			if computed[n] == nil {
				computed[n] = make(Computed)
				ranks[n] = make(map[string]rank)
			}
			for name, v := range b.rule.Properties {
				r := rank{important: v.Important, spec: spec, order: b.order}
				if old, ok := ranks[n][name]; ok && r.less(old) {
					continue
				}
				ranks[n][name] = r
				computed[n][name] = v
			}
		}
	}
	a.log.Debug("Stylesheet applied", zap.Int("selectors", len(bindings)), zap.Int("elements", len(computed)))
	return computed, errs
}

// Apply applies sheet to tree under root with default settings.
func Apply(sheet *Stylesheet, root *dom.Node) (map[*dom.Node]Computed, error) {
	return NewApplier(nil).Apply(sheet, root)
}
