// Command bili-sync watches configured favorite/collection/submission/
// watch-later/bangumi sources on an interval, enumerates new items, and
// downloads them with their metadata through a durable, resumable task
// queue (§1 OVERVIEW).
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/snapetech/bili-sync/internal/bilibili"
	"github.com/snapetech/bili-sync/internal/config"
	"github.com/snapetech/bili-sync/internal/download"
	"github.com/snapetech/bili-sync/internal/httpclient"
	"github.com/snapetech/bili-sync/internal/layout"
	"github.com/snapetech/bili-sync/internal/system"
)

func main() {
	envFile := flag.String("env-file", ".env", "Path to a .env file to source before reading the environment")
	flag.Parse()

	if err := config.LoadEnvFile(*envFile); err != nil {
		log.Printf("load env file %s: %v", *envFile, err)
	}
	env := config.Load()

	client := bilibili.New(httpclient.Default(), bilibili.Credentials{
		SESSDATA:        env.SessData,
		BiliJCT:         env.BiliJCT,
		Buvid3:          env.Buvid3,
		Buvid4:          env.Buvid4,
		DedeUserID:      env.DedeUserID,
		DedeUserIDCKMD5: env.DedeUserIDCKMD5,
		ACTimeValue:     env.ACTimeValue,
	})

	collab := download.Collaborators{
		Downloader: download.NewHTTPDownloader(),
		Muxer:      download.FFmpegMuxer{},
		Metadata:   download.NFOWriter{},
		Danmaku:    download.NoopDanmaku{},
		Subtitle:   download.NoopSubtitle{},
	}

	ctx, err := system.New(env, client, collab, layout.TemplateRenderer{})
	if err != nil {
		log.Fatalf("bili-sync: %v", err)
	}
	defer ctx.Close()

	mux := http.NewServeMux()
	if g := ctx.Metrics.Gatherer(); g != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	}
	go func() {
		log.Printf("bili-sync: metrics listening on %s", env.BindAddress)
		if err := http.ListenAndServe(env.BindAddress, mux); err != nil && err != http.ErrServerClosed {
			log.Printf("bili-sync: metrics server: %v", err)
		}
	}()

	runCtx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := ctx.Scheduler.Run(runCtx); err != nil {
			log.Printf("bili-sync: scheduler stopped: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("bili-sync: shutting down")
	cancel()
}
