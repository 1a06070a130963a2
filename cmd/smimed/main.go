// Command smimed runs a diagnostics HTTP surface alongside the engine:
// live session listing, per-session protocol traces, and Prometheus
// metrics. It drives no cryptographic operations itself.
package main

import (
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/secure"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hexgate/smime-engine/internal/diag"
	"github.com/hexgate/smime-engine/internal/engine"
	"github.com/hexgate/smime-engine/internal/eventbridge"
)

// ZapLogger is a gin middleware translating request completion into a
// structured log line, the same convention used across this codebase.
func ZapLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()

		log.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

func main() {
	log, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	helperPath := envOr("SMIME_HELPER_PATH", "/usr/bin/gpgsm")
	maxPreflight := envInt("SMIME_MAX_PREFLIGHT", 8)
	maxOnflight := envInt("SMIME_MAX_ONFLIGHT", 32)
	listenAddr := envOr("SMIME_DIAG_LISTEN", ":8088")
	sessionSecret := envOr("SMIME_DIAG_SESSION_SECRET", "dev-secret-change-me")

	registry := engine.NewRegistry(log, helperPath, os.Environ(), int64(maxPreflight), int64(maxOnflight))

	reg := prometheus.NewRegistry()
	metrics := engine.NewMetrics(reg)
	registry.SetMetrics(metrics)
	go occupancyReporter(registry, metrics)

	versions := engine.NewVersionCache(helperPath)
	if watcher, err := diag.WatchBinary(log, helperPath, versions); err != nil {
		log.Warn("binary watcher disabled", zap.String("path", helperPath), zap.Error(err))
	} else {
		defer watcher.Close()
	}

	if addr := os.Getenv("SMIME_REDIS_ADDR"); addr != "" {
		db := envInt("SMIME_REDIS_DB", 0)
		bridge := eventbridge.NewBridge(addr, db, log)
		defer bridge.Close()
		registry.SetEventSink(bridge)
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), ZapLogger(log))
	r.Use(secure.New(secure.Config{
		SSLRedirect:           false,
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ContentSecurityPolicy: "default-src 'self'",
	}))

	if os.Getenv("SMIME_DIAG_DEV_CORS") == "1" {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     []string{"http://localhost:5173"},
			AllowMethods:     []string{"GET", "POST"},
			AllowHeaders:     []string{"Content-Type"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	store := cookie.NewStore([]byte(sessionSecret))
	r.Use(sessions.Sessions("smimed_session", store))

	r.GET("/api/ping", func(c *gin.Context) {
		version, verr := versions.Version()
		resp := gin.H{"status": "ok"}
		if verr == nil {
			resp["helper_version"] = version
		}
		c.JSON(http.StatusOK, resp)
	})

	r.GET("/api/sessions", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"sessions": registry.List()})
	})

	r.GET("/api/sessions/:id", func(c *gin.Context) {
		id := engine.SessionID(c.Param("id"))
		snap, ok := registry.GetSnapshot(id)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown session"})
			return
		}
		c.JSON(http.StatusOK, snap)
	})

	r.GET("/api/sessions/:id/trace", func(c *gin.Context) {
		id := engine.SessionID(c.Param("id"))
		if _, ok := registry.Get(id); !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown session"})
			return
		}
		n := 0
		if raw := c.Query("n"); raw != "" {
			n, _ = strconv.Atoi(raw)
		}
		c.JSON(http.StatusOK, gin.H{"lines": registry.Trace(id, n)})
	})

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	srv := &http.Server{Addr: listenAddr, Handler: r}
	go func() {
		log.Info("diagnostics server listening", zap.String("addr", listenAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server exited", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("shutting down")
	registry.CloseAll()
	_ = srv.Close()
}

// occupancyReporter periodically samples registry slot occupancy into
// the Prometheus gauges; the registry itself has no background ticking
// of its own.
func occupancyReporter(registry *engine.Registry, metrics *engine.Metrics) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		pre, on := registry.Counts()
		metrics.SetOccupancy(pre, on)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
