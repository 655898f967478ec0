package clicmds

import (
	"context"
	"fmt"
	"net/url"

	"github.com/davecgh/go-spew/spew"
	"github.com/urfave/cli/v2"
	"gitlab.com/navguard/mock"
	"gitlab.com/navguard/navguard"
	"gitlab.com/navguard/policy/pagedata"
)

// ScriptsFlags for dumping the computed script set of a URL
func ScriptsFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "url",
			Usage: "main frame url",
			Value: "",
		},
		&cli.StringSliceFlag{
			Name:  "subframe",
			Usage: "sub frame url, repeatable",
		},
		&cli.BoolFlag{
			Name:  "fingerprinting",
			Usage: "enable the fingerprint protection shield",
		},
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "dump full descriptors instead of names",
		},
	}
}

// Scripts prints the desired script set for a page, useful for checking
// what a domain's shield settings produce
func Scripts(ctx *cli.Context) error {
	main, err := url.Parse(ctx.String("url"))
	if err != nil || main.Scheme == "" {
		return fmt.Errorf("a valid --url is required")
	}

	page := pagedata.New(main, mock.MakeMockAdblockService())
	for _, raw := range ctx.StringSlice("subframe") {
		if sub, err := url.Parse(raw); err == nil {
			page.ObserveRequest(sub, false)
		}
	}

	domain := &navguard.DomainSnapshot{
		Host:   main.Hostname(),
		Domain: navguard.RegistrableDomain(main),
		Shields: map[navguard.Shield]bool{
			navguard.ShieldAdblockAndTp: true,
			navguard.ShieldFpProtection: ctx.Bool("fingerprinting"),
		},
	}

	desired := page.DesiredScripts(context.Background(), domain)
	for _, d := range desired.Sorted() {
		if ctx.Bool("verbose") {
			spew.Dump(d)
		} else {
			fmt.Println(d.Name)
		}
	}
	return nil
}
