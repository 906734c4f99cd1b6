package recorder

import (
	"context"
	"encoding/csv"
	stderrors "errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

var (
	ErrQueueFull      = errors.New("trade log queue full")
	ErrClosed         = errors.New("trade log closed")
	ErrNotStarted     = errors.New("trade log not started")
	ErrAlreadyStarted = errors.New("trade log already started")
)

const (
	timeLayout = "2006-01-02 15:04:05.000000"
	dayLayout  = "2006-01-02"
)

// Trade is one fill row. Qty is signed: sells are negative.
type Trade struct {
	Time    time.Time
	Price   float64
	Qty     int64
	Account string
	Tag     string
}

func (t Trade) record(loc *time.Location) []string {
	return []string{
		t.Time.In(loc).Format(timeLayout),
		strconv.FormatFloat(t.Price, 'f', -1, 64),
		strconv.FormatInt(t.Qty, 10),
		t.Account,
		t.Tag,
	}
}

// TradeLog appends fills to one CSV file per local day from a buffered
// queue. A new file starts with Header; the day is taken from the fill
// time, so rollover follows the fills rather than the wall clock.
type TradeLog struct {
	cfg Config
	ch  chan Trade
	wg  sync.WaitGroup
	err atomic.Pointer[error]

	started atomic.Bool
	closed  atomic.Bool
	// mu orders sends on ch against close(ch).
	mu sync.RWMutex

	day *dayFile
}

type dayFile struct {
	day  string
	file *os.File
	csv  *csv.Writer
}

// NewTradeLog creates a trade log and ensures the directory exists.
func NewTradeLog(cfg Config) (*TradeLog, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create %s", cfg.Dir)
	}
	return &TradeLog{
		cfg: cfg,
		ch:  make(chan Trade, cfg.QueueSize),
	}, nil
}

// Path returns the file a trade at t is written to.
func (l *TradeLog) Path(t time.Time) string {
	return filepath.Join(l.cfg.Dir, t.In(l.cfg.Location).Format(dayLayout)+".csv")
}

// Start runs the writer loop in a new goroutine.
func (l *TradeLog) Start(ctx context.Context) error {
	if !l.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.run(ctx)
	}()
	return nil
}

// Close stops the writer after draining queued trades.
func (l *TradeLog) Close() error {
	l.mu.Lock()
	if l.closed.CompareAndSwap(false, true) {
		close(l.ch)
	}
	l.mu.Unlock()
	l.wg.Wait()
	return l.Err()
}

// Err returns the first error observed by the writer, if any.
func (l *TradeLog) Err() error {
	if p := l.err.Load(); p != nil {
		return *p
	}
	return nil
}

// TryAppend enqueues a trade without blocking.
func (l *TradeLog) TryAppend(t Trade) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed.Load() {
		return ErrClosed
	}
	if !l.started.Load() {
		return ErrNotStarted
	}
	if err := l.Err(); err != nil {
		return err
	}
	select {
	case l.ch <- t:
		return nil
	default:
		return ErrQueueFull
	}
}

func (l *TradeLog) run(ctx context.Context) {
	var flushC <-chan time.Time
	if l.cfg.FlushInterval > 0 {
		ticker := time.NewTicker(l.cfg.FlushInterval)
		defer ticker.Stop()
		flushC = ticker.C
	}
	defer func() {
		if err := l.closeDay(); err != nil {
			l.setErr(err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			l.drain()
			return
		case t, ok := <-l.ch:
			if !ok {
				return
			}
			if err := l.write(t); err != nil {
				l.setErr(err)
				return
			}
		case <-flushC:
			if err := l.flush(); err != nil {
				l.setErr(err)
				return
			}
		}
	}
}

func (l *TradeLog) drain() {
	for {
		select {
		case t, ok := <-l.ch:
			if !ok {
				return
			}
			if err := l.write(t); err != nil {
				l.setErr(err)
				return
			}
		default:
			return
		}
	}
}

func (l *TradeLog) write(t Trade) error {
	day := t.Time.In(l.cfg.Location).Format(dayLayout)
	if l.day == nil || l.day.day != day {
		if err := l.closeDay(); err != nil {
			return err
		}
		if err := l.openDay(t.Time); err != nil {
			return err
		}
	}
	if err := l.day.csv.Write(t.record(l.cfg.Location)); err != nil {
		return errors.Wrap(err, "write trade")
	}
	if l.cfg.FlushInterval == 0 {
		return l.flush()
	}
	return nil
}

func (l *TradeLog) openDay(t time.Time) error {
	path := l.Path(t)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	fresh := err == nil
	if stderrors.Is(err, os.ErrExist) {
		file, err = os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	}
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}

	w := csv.NewWriter(file)
	if fresh {
		if err := w.Write(Header); err != nil {
			_ = file.Close()
			return errors.Wrap(err, "write header")
		}
		logs.Infof("recorder: new trade file %s", path)
	}
	l.day = &dayFile{day: t.In(l.cfg.Location).Format(dayLayout), file: file, csv: w}
	return nil
}

func (l *TradeLog) flush() error {
	if l.day == nil {
		return nil
	}
	l.day.csv.Flush()
	return l.day.csv.Error()
}

func (l *TradeLog) closeDay() error {
	if l.day == nil {
		return nil
	}
	day := l.day
	l.day = nil
	day.csv.Flush()
	if err := day.csv.Error(); err != nil {
		_ = day.file.Close()
		return err
	}
	if err := day.file.Sync(); err != nil {
		_ = day.file.Close()
		return err
	}
	return day.file.Close()
}

func (l *TradeLog) setErr(err error) {
	if err == nil {
		return
	}
	logs.Errorf("recorder: %+v", err)
	l.err.CompareAndSwap(nil, &err)
}
