// Package messaging mirrors daemon status into Redis and takes commands from
// Redis lists.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pocketgadget/gadgetd/internal/clock"
	"github.com/pocketgadget/gadgetd/internal/logger"
	"github.com/pocketgadget/gadgetd/internal/status"
)

// Defaults for Options.
const (
	DefaultInterval = 250 * time.Millisecond
	DefaultHash     = "gadget"
	DefaultPrefix   = "gadget"
)

const (
	brpopTimeout   = 5 * time.Second
	commandTimeout = 2 * time.Second
)

// ErrInvalidCommand is returned for list values that do not parse.
var ErrInvalidCommand = errors.New("messaging: invalid command")

// Commands is the command surface Redis lists feed.
type Commands interface {
	PowerOff(ctx context.Context) error
	SetBrightness(ctx context.Context, step int) error
	StartAdvertising(ctx context.Context) error
	StopAdvertising(ctx context.Context) error
	SetAdvertisingPower(ctx context.Context, level int) error
}

// Options configures a Client.
type Options struct {
	Addr string
	// Hash is the status hash key and the channel notified on change.
	Hash string
	// Prefix names the command lists, "<prefix>:advert" and "<prefix>:display".
	Prefix   string
	Interval time.Duration
	Log      *logger.Logger
}

// Client writes tracker snapshots to a hash and serves command lists.
type Client struct {
	client   *redis.Client
	tracker  *status.Tracker
	cmds     Commands
	hash     string
	prefix   string
	interval time.Duration
	log      *logger.Logger

	written   bool
	version   uint64
	known     bool
	connected bool
}

// New creates a Client. cmds may be nil, in which case no lists are served.
func New(tracker *status.Tracker, cmds Commands, opts Options) *Client {
	if opts.Hash == "" {
		opts.Hash = DefaultHash
	}
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Log == nil {
		opts.Log = logger.Discard()
	}
	return &Client{
		client:   redis.NewClient(&redis.Options{Addr: opts.Addr, DB: 0}),
		tracker:  tracker,
		cmds:     cmds,
		hash:     opts.Hash,
		prefix:   opts.Prefix,
		interval: opts.Interval,
		log:      opts.Log,
	}
}

// AdvertKey is the list carrying advertising commands.
func (c *Client) AdvertKey() string { return c.prefix + ":advert" }

// DisplayKey is the list carrying display and power commands.
func (c *Client) DisplayKey() string { return c.prefix + ":display" }

// Run mirrors status and serves the command lists until ctx is done. An
// unreachable server is logged and retried; Run always returns nil.
func (c *Client) Run(ctx context.Context) error {
	c.log.Infof("mirroring to %s hash %q", c.client.Options().Addr, c.hash)

	var wg sync.WaitGroup
	if c.cmds != nil {
		wg.Add(2)
		go c.listCommandListener(ctx, &wg, c.AdvertKey(), c.handleAdvertCommand)
		go c.listCommandListener(ctx, &wg, c.DisplayKey(), c.handleDisplayCommand)
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		c.mirror(ctx)
		select {
		case <-ctx.Done():
			wg.Wait()
			return nil
		case <-ticker.C:
		}
	}
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.client.Close()
}

// mirror writes the snapshot when the tracker changed since the last write.
func (c *Client) mirror(ctx context.Context) {
	v := c.tracker.Version()
	if c.written && v == c.version {
		return
	}
	snap := c.tracker.Snapshot()

	pipe := c.client.Pipeline()
	pipe.HSet(ctx, c.hash, Fields(snap))
	pipe.Publish(ctx, c.hash, "status")
	_, err := pipe.Exec(ctx)
	if err != nil {
		if ctx.Err() == nil {
			c.setConnected(false, err)
		}
		return
	}
	c.setConnected(true, nil)
	c.written = true
	c.version = v
}

func (c *Client) setConnected(ok bool, err error) {
	if c.known && ok == c.connected {
		return
	}
	c.known = true
	c.connected = ok
	if ok {
		c.log.Infof("connected")
	} else {
		c.log.Warnf("write failed: %v", err)
	}
	c.tracker.SetRedisConnected(ok)
}

// Fields flattens a snapshot into hash fields.
func Fields(snap status.Snapshot) map[string]interface{} {
	return map[string]interface{}{
		"locked":              strconv.FormatBool(snap.Locked),
		"brightness":          snap.Brightness,
		"brightness:mv":       snap.BrightnessMv,
		"advert:running":      strconv.FormatBool(snap.Advert.Running),
		"advert:power":        snap.Advert.Power,
		"advert:power-dbm":    snap.Advert.PowerDBm,
		"advert:cycles":       snap.Advert.Cycles,
		"advert:address":      snap.Advert.LastAddress,
		"advert:mode":         snap.Advert.LastMode,
		"events:locked-drops": snap.Counts.Dropped,
		"events:bus-drops":    snap.BusDropped,
		"healthy":             strconv.FormatBool(len(snap.Faults) == 0),
		"faults":              strings.Join(snap.FaultNames(), ","),
		"uptime":              int64(snap.Uptime().Seconds()),
		"mqtt:connected":      strconv.FormatBool(snap.MQTTConnected),
	}
}

func (c *Client) listCommandListener(ctx context.Context, wg *sync.WaitGroup, key string, handler func(context.Context, string) error) {
	defer wg.Done()
	c.log.Infof("listening on %s", key)

	for {
		result, err := c.client.BRPop(ctx, brpopTimeout, key).Result()
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			c.log.Debugf("read %s: %v", key, err)
			if clock.Sleep(ctx, time.Second) != nil {
				return
			}
			continue
		}
		if len(result) < 2 { // BRPOP returns [key, value]
			continue
		}

		value := result[1]
		c.log.Debugf("command from %s: %s", key, value)
		cctx, cancel := context.WithTimeout(ctx, commandTimeout)
		if err := handler(cctx, value); err != nil {
			c.log.Warnf("%s %q: %v", key, value, err)
		}
		cancel()
	}
}

func (c *Client) handleAdvertCommand(ctx context.Context, value string) error {
	return HandleAdvert(ctx, c.cmds, value)
}

func (c *Client) handleDisplayCommand(ctx context.Context, value string) error {
	return HandleDisplay(ctx, c.cmds, value)
}

// HandleAdvert applies "start", "stop" or "power:N".
func HandleAdvert(ctx context.Context, cmds Commands, value string) error {
	switch value {
	case "start":
		return cmds.StartAdvertising(ctx)
	case "stop":
		return cmds.StopAdvertising(ctx)
	}
	if n, ok := intArg(value, "power:"); ok {
		return cmds.SetAdvertisingPower(ctx, n)
	}
	return fmt.Errorf("%w: advert %q", ErrInvalidCommand, value)
}

// HandleDisplay applies "brightness:N" or "off".
func HandleDisplay(ctx context.Context, cmds Commands, value string) error {
	if value == "off" {
		return cmds.PowerOff(ctx)
	}
	if n, ok := intArg(value, "brightness:"); ok {
		return cmds.SetBrightness(ctx, n)
	}
	return fmt.Errorf("%w: display %q", ErrInvalidCommand, value)
}

func intArg(value, prefix string) (int, bool) {
	rest, found := strings.CutPrefix(value, prefix)
	if !found {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	return n, err == nil
}
