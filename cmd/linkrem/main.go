package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/Uzaifm127/linkrem/pkg/linkrem/client"
	"github.com/Uzaifm127/linkrem/pkg/linkrem/tagdiff"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "linkrem",
		Usage: "command-line client for a Linkrem server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Value:   "http://localhost:8080",
				Usage:   "server base URL",
				EnvVars: []string{"LINKREM_SERVER"},
			},
			&cli.StringFlag{
				Name:     "token",
				Usage:    "JWT or extension token",
				EnvVars:  []string{"LINKREM_TOKEN"},
				Required: true,
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "links",
				Usage: "list links",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "tag", Usage: "only links carrying this tag"},
				},
				Action: listLinks,
			},
			{
				Name:   "tags",
				Usage:  "list tags with link counts",
				Action: listTags,
			},
			{
				Name:      "set-tags",
				Usage:     "replace the tags of a link",
				ArgsUsage: "<link-id> <tag,tag,...>",
				Action:    setTags,
			},
			{
				Name:      "open-tag",
				Usage:     "print the URLs of every link carrying a tag",
				ArgsUsage: "<tag>",
				Action:    openTag,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newClient(c *cli.Context) *client.Client {
	return client.New(c.String("server"), c.String("token"))
}

func listLinks(c *cli.Context) error {
	links, err := newClient(c).Links(c.Context, c.String("tag"))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tURL\tTAGS")
	for _, l := range links {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", l.ID, l.Name, l.URL, strings.Join(l.Tags, ","))
	}
	return w.Flush()
}

func listTags(c *cli.Context) error {
	tags, err := newClient(c).Tags(c.Context)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TAG\tLINKS\tLOCKED")
	for _, t := range tags {
		fmt.Fprintf(w, "%s\t%d\t%t\n", t.Name, t.LinkCount, t.Locked)
	}
	return w.Flush()
}

func setTags(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("usage: linkrem set-tags <link-id> <tag,tag,...>", 2)
	}
	id, err := strconv.ParseUint(c.Args().Get(0), 10, 32)
	if err != nil {
		return cli.Exit("link id must be a number", 2)
	}

	edit, err := newClient(c).SetTags(c.Context, uint(id), tagdiff.Parse(c.Args().Get(1)))
	if err != nil {
		return err
	}

	fmt.Fprintln(c.App.Writer, edit.Message)
	if len(edit.Attached) > 0 {
		fmt.Fprintf(c.App.Writer, "+ %s\n", strings.Join(edit.Attached, ", "))
	}
	if len(edit.Detached) > 0 {
		fmt.Fprintf(c.App.Writer, "- %s\n", strings.Join(edit.Detached, ", "))
	}
	return nil
}

func openTag(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: linkrem open-tag <tag>", 2)
	}
	urls, err := newClient(c).OpenTag(c.Context, c.Args().First())
	if err != nil {
		return err
	}
	for _, u := range urls {
		fmt.Fprintln(c.App.Writer, u)
	}
	return nil
}
