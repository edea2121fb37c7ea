package sizeengine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	sitter "github.com/alexaandru/go-tree-sitter-bare"
)

var (
	errGrammarNotAvailable = errors.New("grammar not available")
	errPoolType            = errors.New("parser pool returned unexpected type")
	errNoRootNode          = errors.New("parse produced no root node")
	errNoGrammars          = errors.New("no grammars to parse with")
)

// parserPool hands out tree-sitter parsers per grammar. Parsers are not safe
// for concurrent use, so each parse borrows one.
type parserPool struct {
	mu    sync.Mutex
	pools map[string]*sync.Pool
}

func newParserPool() *parserPool {
	return &parserPool{pools: make(map[string]*sync.Pool)}
}

func (p *parserPool) pool(grammar string) (*sync.Pool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if pool, ok := p.pools[grammar]; ok {
		return pool, nil
	}

	lang := getGrammar(grammar)
	if lang == nil {
		return nil, fmt.Errorf("%w: %s", errGrammarNotAvailable, grammar)
	}

	pool := &sync.Pool{
		New: func() any {
			tsParser := sitter.NewParser()
			tsParser.SetLanguage(lang)

			return tsParser
		},
	}
	p.pools[grammar] = pool

	return pool, nil
}

// parse parses content with the named grammar. The caller must Close the tree.
func (p *parserPool) parse(ctx context.Context, grammar string, content []byte) (*sitter.Tree, error) {
	pool, err := p.pool(grammar)
	if err != nil {
		return nil, err
	}

	tsParser, ok := pool.Get().(*sitter.Parser)
	if !ok {
		return nil, errPoolType
	}

	defer pool.Put(tsParser)

	tree, err := tsParser.ParseString(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", grammar, err)
	}

	if tree.RootNode().IsNull() {
		tree.Close()

		return nil, errNoRootNode
	}

	return tree, nil
}

// parseFirstClean parses content with each grammar in turn and returns the
// first tree free of syntax errors. When every grammar fails, it returns the
// first grammar's tree and the line of its first error. The caller must
// Close the tree.
func (p *parserPool) parseFirstClean(
	ctx context.Context, grammars []string, content []byte,
) (*sitter.Tree, int, error) {
	var (
		first     *sitter.Tree
		firstLine int
	)

	for _, grammar := range grammars {
		tree, err := p.parse(ctx, grammar, content)
		if err != nil {
			if first != nil {
				first.Close()
			}

			return nil, 0, err
		}

		line := firstErrorLine(tree.RootNode())
		if line == 0 {
			if first != nil {
				first.Close()
			}

			return tree, 0, nil
		}

		if first == nil {
			first, firstLine = tree, line

			continue
		}

		tree.Close()
	}

	if first == nil {
		return nil, 0, errNoGrammars
	}

	return first, firstLine, nil
}

// reset drops every pooled parser.
func (p *parserPool) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.pools = make(map[string]*sync.Pool)
}
