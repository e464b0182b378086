package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/forestpark/assistant/backend/internal/config"
	"github.com/forestpark/assistant/backend/internal/model/auth"
	"github.com/forestpark/assistant/backend/internal/service/relay"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] 无法加载 .env，改用系统环境变量: %v", err)
	}

	question := flag.String("q", "", "要发送的问题")
	user := flag.String("user", "", "用户名，留空则以匿名身份发送")
	timeout := flag.Duration("timeout", 90*time.Second, "请求超时时间")
	provider := flag.String("provider", "", "覆盖 BOT_PROVIDER (coze 或 ark)")
	quiet := flag.Bool("quiet", false, "只输出最终回答")

	flag.Parse()

	text := strings.TrimSpace(*question)
	if text == "" {
		text = strings.TrimSpace(strings.Join(flag.Args(), " "))
	}
	if text == "" {
		flag.Usage()
		log.Fatal("请通过 -q 指定问题")
	}

	// The probe never touches sessions, so a placeholder secret satisfies validation.
	if os.Getenv("SESSION_SECRET") == "" {
		os.Setenv("SESSION_SECRET", "chatprobe")
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("配置加载失败: %v", err)
	}
	if *provider != "" {
		cfg.Bot.Provider = *provider
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	r, err := relay.NewFromConfig(ctx, cfg.Bot, cfg.Ark)
	if err != nil {
		log.Fatalf("初始化机器人失败: %v", err)
	}

	var principal *auth.Principal
	if *user != "" {
		principal = &auth.Principal{Username: *user}
	}
	req := relay.Request{UserID: relay.OutboundUserID(principal), Question: text}
	log.Printf("[probe] provider=%s user_id=%s question=%q", cfg.Bot.Provider, req.UserID, text)

	start := time.Now()
	stream := relay.Stream(ctx, r, req)
	defer stream.Close()

	var (
		answer  string
		updates int
		first   time.Duration
	)
	for {
		cumulative, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var upstream *relay.UpstreamError
			if errors.As(err, &upstream) {
				log.Fatalf("上游返回错误 status=%d body=%s", upstream.StatusCode, upstream.Body)
			}
			log.Fatalf("请求失败 (已收到 %d 字): %v", len([]rune(answer)), err)
		}
		if updates == 0 {
			first = time.Since(start)
		}
		updates++
		if !*quiet {
			fmt.Printf("\r%s", cumulative)
		}
		answer = cumulative
	}

	if *quiet {
		fmt.Println(answer)
	} else {
		fmt.Println()
	}
	log.Printf("[probe] done updates=%d first_fragment=%s total=%s chars=%d",
		updates, first.Round(time.Millisecond), time.Since(start).Round(time.Millisecond), len([]rune(answer)))
}
