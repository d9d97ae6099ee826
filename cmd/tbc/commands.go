package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"tbc/archive"
	"tbc/document"
	"tbc/dom"
	"tbc/dom/css"
	"tbc/dom/scanner"
	"tbc/dom/selector"
	"tbc/dom/sgml"
	"tbc/state"
	"tbc/style"
)

func charsetFlag() cli.Flag {
	return &cli.StringFlag{Name: "charset", Usage: "input encoding `LABEL`, overrides configuration"}
}

func documentFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "document `FORMAT` (auto, html, xml, sgml), overrides configuration"},
		charsetFlag(),
	}
}

// applyOverrides moves document flags into the environment.
func applyOverrides(env *state.LocalEnv, cmd *cli.Command) error {
	if cmd.IsSet("charset") {
		env.SetCharset(cmd.String("charset"))
	}
	if cmd.IsSet("format") {
		return env.SetFormat(cmd.String("format"))
	}
	return nil
}

// loadDocument builds tree for the file named by argument i.
func loadDocument(env *state.LocalEnv, cmd *cli.Command, i int) (*dom.Node, string, error) {
	path := cmd.Args().Get(i)
	if path == "" {
		return nil, "", errors.New("no input file specified")
	}
	if err := applyOverrides(env, cmd); err != nil {
		return nil, "", err
	}
	doc, err := env.LoadDocument(path)
	if err != nil {
		return nil, "", err
	}
	return doc, path, nil
}

func runTokens(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)

	path := cmd.Args().First()
	if path == "" {
		return errors.New("no input file specified")
	}
	if err := applyOverrides(env, cmd); err != nil {
		return err
	}
	env.StoreInput(path)

	data, err := archive.ReadFile(path)
	if err != nil {
		return fmt.Errorf("unable to read input: %w", err)
	}
	in, err := document.Decode(bytes.NewReader(data), env.Charset())
	if err != nil {
		return err
	}
	text, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("unable to decode input: %w", err)
	}

	var (
		sc       *scanner.Scanner
		typeName func(scanner.TokenType) string
	)
	switch grammar := strings.ToLower(cmd.String("grammar")); grammar {
	case "css":
		sc, typeName = css.NewScanner(string(text)), css.TypeName
	case "sgml":
		sc, typeName = sgml.NewScanner(string(text)), sgml.TypeName
	default:
		return fmt.Errorf("unknown grammar %q, try [css, sgml]", grammar)
	}

	w := bufio.NewWriter(cmd.Root().Writer)
	count := 0
	for tok := sc.Next(); tok != nil; tok = sc.Next() {
		if env.Cfg.Output.LineNumbers {
			fmt.Fprintf(w, "%5d ", sc.Line(tok.Offset))
		}
		fmt.Fprintf(w, "%-16s %7d %q\n", typeName(tok.Type), tok.Offset, tok.Text)
		count++
	}
	err = w.Flush()
	env.Log.Debug("Tokenized", zap.String("file", path), zap.Int("tokens", count))
	if er := sc.Err(); er != nil {
		err = multierr.Append(err, fmt.Errorf("unable to tokenize %s: %w", path, er))
	}
	return err
}

func runSelect(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)

	sels, err := selector.ParseList(cmd.Args().First())
	if err != nil {
		return fmt.Errorf("bad selector: %w", err)
	}
	doc, path, err := loadDocument(env, cmd, 1)
	if err != nil {
		return err
	}

	// all selectors share a single walk
	s := dom.NewStack(env.StackOptions()...)
	defer s.Done()
	matchers := make([]*selector.Matcher, len(sels))
	for i, sel := range sels {
		matchers[i] = selector.NewMatcher(sel, env.Log)
		matchers[i].Attach(s)
	}
	if err := s.Walk(doc); err != nil {
		return fmt.Errorf("unable to match %s: %w", path, err)
	}

	field := env.Cfg.Output.MatchTemplate
	if cmd.IsSet("template") {
		field = cmd.String("template")
	}
	var mt *matchTemplate
	if field != "" {
		if mt, err = newMatchTemplate(field); err != nil {
			return err
		}
	}

	w := bufio.NewWriter(cmd.Root().Writer)
	for i, m := range matchers {
		if err := m.Err(); err != nil {
			return fmt.Errorf("unable to match %s: %w", sels[i], err)
		}
		if len(sels) > 1 {
			fmt.Fprintf(w, "# %s\n", sels[i])
		}
		for _, n := range m.Matches() {
			fmt.Fprint(w, env.Cfg.Output.MatchPrefix)
			switch {
			case cmd.Bool("dump"):
				if err := sgml.Dump(w, n); err != nil {
					return fmt.Errorf("unable to write match: %w", err)
				}
			case mt != nil:
				text, err := mt.expand(sels[i].String(), n)
				if err != nil {
					return fmt.Errorf("unable to expand match template: %w", err)
				}
				fmt.Fprint(w, text)
			default:
				fmt.Fprint(w, elementPath(n))
			}
			fmt.Fprintln(w)
		}
		env.Log.Debug("Selector matched", zap.Stringer("selector", sels[i]), zap.Int("matches", len(m.Matches())))
	}
	return w.Flush()
}

func runStyle(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)

	doc, path, err := loadDocument(env, cmd, 0)
	if err != nil {
		return err
	}

	parser := style.NewParser(env.Log)
	sheet := &style.Stylesheet{}
	add := func(data []byte, source string) {
		s, err := parser.Parse(data, source)
		if err != nil {
			env.Log.Warn("Stylesheet has invalid rules", zap.String("source", source), zap.Error(err))
		}
		sheet.Append(s)
	}
	load := func(name string) {
		data, err := archive.ReadFile(name)
		if err != nil {
			env.Log.Warn("Unable to read stylesheet, ignoring", zap.String("file", name), zap.Error(err))
			return
		}
		env.Rpt.StoreData("css/"+filepath.Base(name), data)
		add(data, name)
	}

	if env.Cfg.Document.Embedded {
		for _, href := range style.Linked(doc) {
			if strings.Contains(href, "://") {
				env.Log.Debug("Skipping remote stylesheet", zap.String("href", href))
				continue
			}
			load(archive.Resolve(path, href))
		}
		for i, text := range style.Embedded(doc) {
			add([]byte(text), fmt.Sprintf("%s:style[%d]", filepath.Base(path), i+1))
		}
	}
	for _, name := range env.Cfg.Document.Stylesheets {
		load(name)
	}
	for _, name := range cmd.StringSlice("css") {
		load(name)
	}

	applier := style.NewApplier(env.Log,
		style.WithMedium(env.Cfg.Document.Medium),
		style.WithStackOptions(env.StackOptions()...))
	styles, err := applier.Apply(sheet, doc)
	if styles == nil {
		return err
	}
	if err != nil {
		env.Log.Warn("Some selectors could not be matched", zap.Error(err))
	}

	w := bufio.NewWriter(cmd.Root().Writer)
	for _, n := range elements(doc) {
		if computed, ok := styles[n]; ok {
			fmt.Fprintf(w, "%s { %s }\n", elementPath(n), computed)
		}
	}
	return w.Flush()
}

func runDump(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)

	doc, _, err := loadDocument(env, cmd, 0)
	if err != nil {
		return err
	}

	out := cmd.Root().Writer
	if dest := cmd.Args().Get(1); dest != "" {
		f, err := os.Create(dest)
		if err != nil {
			return fmt.Errorf("unable to create destination file '%s': %w", dest, err)
		}
		defer f.Close()
		out = f
	}

	var buf bytes.Buffer
	if err := sgml.Dump(io.MultiWriter(out, &buf), doc); err != nil {
		return fmt.Errorf("unable to write document: %w", err)
	}
	env.Rpt.StoreData("output/dump.sgml", buf.Bytes())
	return nil
}

// elements returns document elements in document order.
func elements(root *dom.Node) []*dom.Node {
	var out []*dom.Node
	s := dom.NewStack()
	defer s.Done()
	info := &dom.ContextInfo[struct{}]{}
	info.Push[dom.ElementNode] = func(_ *dom.Stack, st *dom.State, _ *struct{}) dom.Code {
		out = append(out, st.Node)
		return dom.CodeOK
	}
	dom.AddContext(s, info)
	_ = s.Walk(root)
	return out
}

// elementPath describes element by its ancestry, e.g. "html > body > p#x.lead".
func elementPath(n *dom.Node) string {
	var parts []string
	for e := n; e.IsElement(""); e = e.Parent {
		part := e.Name
		if id, ok := e.Attr("id"); ok && id != "" {
			part += "#" + id
		}
		if class, ok := e.Attr("class"); ok {
			for _, c := range strings.Fields(class) {
				part += "." + c
			}
		}
		parts = append(parts, part)
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, " > ")
}
