package wasmfxtime

import (
	"fmt"
	"io"
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"
)

// Func is one function's worth of lowering input: a name and the relaxed
// vector nodes selected from it, in program order.
type Func struct {
	Name  string
	Nodes []Node
}

// Options configures a lowering session.
type Options struct {
	// Logger receives per-node rule selection at debug level. Nil discards.
	Logger logrus.FieldLogger

	// Workers bounds LowerModule's parallelism. Zero means GOMAXPROCS.
	Workers int
}

// Session lowers functions for one resolved target. Sessions are immutable
// after construction and safe for concurrent use.
type Session struct {
	target  Target
	table   *RuleTable
	log     logrus.FieldLogger
	workers int
}

// NewSession validates the target's rule table and returns a session bound
// to it.
func NewSession(target Target, opt Options) (*Session, error) {
	table, err := ruleTableFor(target.Arch)
	if err != nil {
		return nil, err
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	log := opt.Logger
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	workers := opt.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Session{target: target, table: table, log: log, workers: workers}, nil
}

// Target returns the target this session lowers for.
func (s *Session) Target() Target { return s.target }

// LowerFunc lowers one function to a bound instruction sequence. The
// sequence carries the standard frame around the selected rule expansions
// and a pool of any constants those expansions referenced.
func (s *Session) LowerFunc(fn *Func) (*Sequence, error) {
	seq := &Sequence{Name: fn.Name, Pool: newConstPool()}
	appendPrologue(s.target.Arch, seq)
	for i, n := range fn.Nodes {
		if _, err := Classify(n); err != nil {
			return nil, fmt.Errorf("%s: node %d: %w", fn.Name, i, err)
		}
		rule, err := s.table.Lookup(n.Op, s.target)
		if err != nil {
			return nil, fmt.Errorf("%s: node %d: %w", fn.Name, i, err)
		}
		s.log.WithFields(logrus.Fields{
			"func":     fn.Name,
			"op":       n.Op.String(),
			"requires": rule.Requires.String(),
			"instrs":   len(rule.Template),
		}).Debug("selected rule")
		if err := emitNode(s.target.Arch, seq, n, rule); err != nil {
			return nil, fmt.Errorf("%s: node %d: %w", fn.Name, i, err)
		}
	}
	appendEpilogue(s.target.Arch, seq)
	return seq, nil
}

// LowerModule lowers a batch of functions concurrently. Results are in
// input order. On failure the error of the earliest failing function is
// returned.
func (s *Session) LowerModule(fns []*Func) ([]*Sequence, error) {
	out := make([]*Sequence, len(fns))
	errs := make([]error, len(fns))

	workers := s.workers
	if workers > len(fns) {
		workers = len(fns)
	}
	if workers <= 1 {
		for i, fn := range fns {
			seq, err := s.LowerFunc(fn)
			if err != nil {
				return nil, err
			}
			out[i] = seq
		}
		return out, nil
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				out[i], errs[i] = s.LowerFunc(fns[i])
			}
		}()
	}
	for i := range fns {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
