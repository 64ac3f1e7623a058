package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iliyamo/restaurant-reservation/internal/config"
)

// cachedResponse is the value stored per key.
type cachedResponse struct {
	Status int         `json:"s"`
	Header http.Header `json:"h"`
	Body   []byte      `json:"b"`
}

// captureWriter tees the response body into buf up to limit bytes.
type captureWriter struct {
	http.ResponseWriter
	status    int
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (w *captureWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *captureWriter) Write(b []byte) (int, error) {
	if !w.truncated {
		if w.limit > 0 && w.buf.Len()+len(b) > w.limit {
			w.truncated = true
		} else {
			w.buf.Write(b)
		}
	}
	return w.ResponseWriter.Write(b)
}

// cacheKey hashes the parts selected by the key strategy.  The request path
// is used rather than the route template so that /restaurants/1/menus and
// /restaurants/2/menus never share an entry.  The path also appears in clear
// so that every variant of it can be found by CacheInvalidator.
func cacheKey(cfg config.CacheConfig, c echo.Context) string {
	r := c.Request()
	var tail string
	switch strings.ToLower(cfg.KeyStrategy) {
	case "route":
		tail = r.URL.Path
	case "method_route":
		tail = r.Method + ":" + r.URL.Path
	case "method_route_query":
		tail = r.Method + ":" + r.URL.Path + "?" + r.URL.RawQuery
	default:
		tail = r.URL.Path + "?" + r.URL.RawQuery
	}
	return fmt.Sprintf("%s:%s:%x", cfg.Prefix, r.URL.Path, sha1.Sum([]byte(tail)))
}

var globEscaper = strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`, "]", `\]`)

// CacheInvalidator drops cached responses after writes.  A nil
// *CacheInvalidator, or one built without Redis, does nothing.
type CacheInvalidator struct {
	cfg config.CacheConfig
	rdb *redis.Client
	log zerolog.Logger
}

func NewCacheInvalidator(cfg config.CacheConfig, rdb *redis.Client, log zerolog.Logger) *CacheInvalidator {
	return &CacheInvalidator{cfg: cfg, rdb: rdb, log: log}
}

// Invalidate deletes every cached entry for path whatever its method or query.
func (v *CacheInvalidator) Invalidate(ctx context.Context, path string) error {
	if v == nil || v.rdb == nil || !v.cfg.Enabled {
		return nil
	}
	match := v.cfg.Prefix + ":" + globEscaper.Replace(path) + ":*"
	var cursor uint64
	for {
		keys, next, err := v.rdb.Scan(ctx, cursor, match, 100).Result()
		if err != nil {
			return fmt.Errorf("scan cache keys: %w", err)
		}
		if len(keys) > 0 {
			if err := v.rdb.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("delete cache keys: %w", err)
			}
			v.log.Debug().Str("path", path).Int("keys", len(keys)).Msg("cache invalidated")
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// NewRedisCache replays successful responses from Redis for the configured
// methods.  Only 200 responses whose body fits MaxBodyBytes are stored.
// X-Cache reports HIT or MISS.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client, log zerolog.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passThrough
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !cfg.Methods[strings.ToUpper(c.Request().Method)] {
				return next(c)
			}
			ctx := c.Request().Context()
			key := cacheKey(cfg, c)

			if bs, err := rdb.Get(ctx, key).Bytes(); err == nil {
				var cr cachedResponse
				if json.Unmarshal(bs, &cr) == nil {
					h := c.Response().Header()
					for k, vals := range cr.Header {
						if strings.EqualFold(k, echo.HeaderContentLength) {
							continue
						}
						h[k] = vals
					}
					h.Set("X-Cache", "HIT")
					return c.Blob(cr.Status, h.Get(echo.HeaderContentType), cr.Body)
				}
			} else if err != redis.Nil {
				log.Warn().Err(err).Msg("cache read failed")
			}

			cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: cfg.MaxBodyBytes}
			c.Response().Writer = cw
			c.Response().Header().Set("X-Cache", "MISS")
			if err := next(c); err != nil {
				return err
			}
			if cw.status != http.StatusOK || cw.truncated {
				return nil
			}
			hdr := c.Response().Header().Clone()
			hdr.Del("X-Cache")
			payload, err := json.Marshal(cachedResponse{Status: cw.status, Header: hdr, Body: cw.buf.Bytes()})
			if err != nil {
				return nil
			}
			// store even if the client has gone away
			if err := rdb.Set(context.WithoutCancel(ctx), key, payload, ttl).Err(); err != nil {
				log.Warn().Err(err).Msg("cache write failed")
			}
			return nil
		}
	}
}
