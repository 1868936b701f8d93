// 命令行：刷新并打印附近的海滩/泳池，或查看与清理本地 KV 状态
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"saludables/internal/app"
	"saludables/internal/config"
	"saludables/internal/kv"
	"saludables/internal/liststore"
	"saludables/internal/logger"
	"saludables/internal/model"
	"saludables/internal/planner"
)

func printHelp() {
	fmt.Println("usage: nearby [--env file] <command> [args]")
	fmt.Println("commands:")
	fmt.Println("  list <beach|pool> [limit]   refresh and print the filtered view")
	fmt.Println("  all                         refresh both categories and print the combined view")
	fmt.Println("  digest <beach|pool>         print the planner digest")
	fmt.Println("  fav <id>                    toggle a favorite")
	fmt.Println("  kv get <key>                print a stored value")
	fmt.Println("  kv del <key>                delete a stored value")
}

func printList(items []model.RankedItem, limit int) {
	for i, it := range items {
		if limit > 0 && i >= limit {
			break
		}
		mark := " "
		if planner.IsNonSanitary(it.SanitaryKey) {
			mark = "!"
		}
		place := strings.Join([]string{it.District, it.Province, it.Department}, ", ")
		fmt.Printf("%s %-40s %12s  %s\n", mark, it.Name, planner.DistanceText(it.Distance), place)
	}
}

func refresh(ctx context.Context, st *liststore.Store, cats ...model.Category) error {
	for _, c := range cats {
		if err := st.Refresh(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	args := os.Args[1:]
	if len(args) >= 2 && args[0] == "--env" {
		_ = godotenv.Load(args[1])
		args = args[2:]
	}
	config.LoadDotenv()
	l := logger.Setup(logger.Options{Level: os.Getenv("LOG_LEVEL"), Format: os.Getenv("LOG_FORMAT")})
	if len(args) == 0 || args[0] == "help" {
		printHelp()
		return
	}
	ctx := context.Background()
	a, err := app.Build(ctx, config.Load())
	if err != nil {
		l.Error("app_build_error", "err", err)
		os.Exit(1)
	}
	defer a.Close()

	if err := run(ctx, a, args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		a.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, a *app.App, args []string) error {
	st := a.Store
	switch args[0] {
	case "list":
		if len(args) < 2 {
			return errors.New("list needs a category")
		}
		c, err := model.ParseCategory(args[1])
		if err != nil {
			return err
		}
		limit := 0
		if len(args) > 2 {
			_, _ = fmt.Sscanf(args[2], "%d", &limit)
		}
		if err := refresh(ctx, st, c); err != nil {
			return err
		}
		printList(st.View(c), limit)
	case "all":
		if err := refresh(ctx, st, model.Categories...); err != nil {
			return err
		}
		printList(st.All(), 0)
	case "digest":
		if len(args) < 2 {
			return errors.New("digest needs a category")
		}
		c, err := model.ParseCategory(args[1])
		if err != nil {
			return err
		}
		if err := refresh(ctx, st, c); err != nil {
			return err
		}
		text, err := planner.Digest(c, st.View(c))
		if err != nil {
			return err
		}
		fmt.Println(text)
	case "fav":
		if len(args) < 2 {
			return errors.New("fav needs an id")
		}
		fmt.Printf("%s favorite=%v\n", args[1], st.ToggleFavorite(ctx, args[1]))
	case "kv":
		if len(args) < 3 {
			return errors.New("kv needs get|del and a key")
		}
		switch args[1] {
		case "get":
			v, err := a.KV.Get(ctx, args[2])
			if errors.Is(err, kv.ErrNotFound) {
				fmt.Println("(not found)")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Println(v)
		case "del":
			return a.KV.Delete(ctx, args[2])
		default:
			return fmt.Errorf("unknown kv command %q", args[1])
		}
	default:
		printHelp()
		return fmt.Errorf("unknown command %q", args[0])
	}
	return nil
}
