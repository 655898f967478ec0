package clicmds

import (
	"fmt"
	"net/http"
	"net/url"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"gitlab.com/navguard/navguard"
	"gitlab.com/navguard/policy/resolver"
	"gitlab.com/navguard/store"
)

// ResolveFlags for running a URL through the redirect resolver
func ResolveFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "url",
			Usage: "url to resolve",
			Value: "",
		},
		&cli.StringFlag{
			Name:  "initiator",
			Usage: "document that initiated the request",
			Value: "",
		},
		&cli.StringFlag{
			Name:  "chains",
			Usage: "path of the compiled debounce chain store",
			Value: "navguardchains",
		},
		&cli.StringFlag{
			Name:  "rules",
			Usage: "JSON chain rules file to load before resolving",
			Value: "",
		},
		&cli.BoolFlag{
			Name:  "deamp",
			Usage: "enable AMP canonical rewriting",
		},
		&cli.BoolFlag{
			Name:  "nostrip",
			Usage: "disable query parameter stripping",
		},
	}
}

// Resolve a URL against the chain store and stripping rules, printing the
// replacement if any
func Resolve(ctx *cli.Context) error {
	target, err := url.Parse(ctx.String("url"))
	if err != nil || target.Scheme == "" {
		return fmt.Errorf("a valid --url is required")
	}

	chains := store.NewDebounceStore(ctx.String("chains"))
	if err := chains.Init(); err != nil {
		return err
	}
	defer chains.Close()

	if rulesPath := ctx.String("rules"); rulesPath != "" {
		f, err := os.Open(rulesPath)
		if err != nil {
			return err
		}
		loaded, err := chains.LoadRules(f)
		f.Close()
		if err != nil {
			return err
		}
		log.Info().Int("chains", loaded).Msg("rules loaded")
	}

	cfg := &navguard.Config{
		Flags: map[navguard.FeatureFlag]bool{
			navguard.FlagDebounce:       true,
			navguard.FlagDeAmp:          ctx.Bool("deamp"),
			navguard.FlagQueryStripping: !ctx.Bool("nostrip"),
		},
	}

	req := &navguard.Request{
		URL:         target,
		Method:      "GET",
		Headers:     make(http.Header),
		IsMainFrame: true,
		Cause:       navguard.CauseLinkActivated,
	}
	if raw := ctx.String("initiator"); raw != "" {
		req.InitiatorURL, _ = url.Parse(raw)
	}

	replacement := resolver.New(chains, cfg).Resolve(req)
	if replacement == nil {
		fmt.Printf("%s unchanged\n", target)
		return nil
	}
	fmt.Printf("%s -> %s\n", target, replacement.URL)
	return nil
}
