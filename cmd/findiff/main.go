// cmd/findiff — command line front end for the findiff engine
//
// Usage:
//
//	findiff eval --expr '{"type":"func","name":"sin","arg":{"type":"sym","name":"x"}}' --at 1 --order 2
//	findiff stencil --order 3 --step 0.01
//	findiff serve --listen :8080
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"strconv"
	"strings"

	"github.com/codegangsta/cli"
	"github.com/spacemonkeygo/errors"

	"github.com/njchilds90/findiff"
	"github.com/njchilds90/findiff/internal/config"
)

var usageError = findiff.Error.NewClass("UsageError")

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", errors.GetMessage(err))
		os.Exit(1)
	}
}

func newApp(stdout io.Writer) *cli.App {
	app := cli.NewApp()
	app.Name = "findiff"
	app.Usage = "Forward-difference derivatives of arbitrary order."
	app.Writer = stdout
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "config",
			Usage:  "Path to a YAML config file",
			EnvVar: config.EnvVar,
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "eval",
			Usage: "Differentiate an expression at a point",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "expr", Usage: "Expression as JSON, or @path to read it from a file"},
				cli.StringFlag{Name: "var", Value: "x", Usage: "Differentiation variable"},
				cli.Float64Flag{Name: "at", Usage: "Evaluation point"},
				cli.Float64Flag{Name: "step", Usage: "Step size (default from config)"},
				cli.IntFlag{Name: "order", Usage: "Derivative order (default from config)"},
				cli.StringSliceFlag{Name: "param", Value: &cli.StringSlice{}, Usage: "Parameter binding name=value, repeatable"},
				cli.StringFlag{Name: "method", Value: "nested", Usage: "nested or stencil"},
			},
			Action: func(c *cli.Context) error {
				cfg, err := config.Load(c.GlobalString("config"))
				if err != nil {
					return err
				}
				return evalCmd(c, cfg, stdout)
			},
		},
		{
			Name:  "stencil",
			Usage: "Print the collapsed forward-difference stencil",
			Flags: []cli.Flag{
				cli.Float64Flag{Name: "step", Usage: "Step size (default from config)"},
				cli.IntFlag{Name: "order", Usage: "Derivative order (default from config)"},
			},
			Action: func(c *cli.Context) error {
				cfg, err := config.Load(c.GlobalString("config"))
				if err != nil {
					return err
				}
				params := map[string]interface{}{"step": cfg.Step, "order": cfg.Order}
				if c.IsSet("step") {
					params["step"] = c.Float64("step")
				}
				if c.IsSet("order") {
					params["order"] = c.Int("order")
				}
				resp := cfg.Toolbox().Handle(findiff.ToolRequest{Tool: "stencil", Params: params})
				if resp.Error != "" {
					return findiff.ToolError.New("%s", resp.Error)
				}
				st := resp.Result.(map[string]interface{})["stencil"].([]map[string]float64)
				for _, pt := range st {
					fmt.Fprintf(stdout, "%+g\tf(x%+gh)\n", pt["coeff"], pt["loc"])
				}
				fmt.Fprintf(stdout, "/ h^%d\n", resp.Result.(map[string]interface{})["order"])
				return nil
			},
		},
		{
			Name:  "serve",
			Usage: "Serve tool calls over HTTP",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "listen", Usage: "Listen address (default from config)"},
			},
			Action: func(c *cli.Context) error {
				cfg, err := config.Load(c.GlobalString("config"))
				if err != nil {
					return err
				}
				if c.IsSet("listen") {
					cfg.Listen = c.String("listen")
				}
				return serve(cfg)
			},
		},
	}
	return app
}

func evalCmd(c *cli.Context, cfg config.Config, stdout io.Writer) error {
	raw := c.String("expr")
	if raw == "" {
		return usageError.New("--expr is required")
	}
	if strings.HasPrefix(raw, "@") {
		data, err := ioutil.ReadFile(raw[1:])
		if err != nil {
			return err
		}
		raw = string(data)
	}
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return findiff.ExprError.Wrap(err)
	}

	params := map[string]interface{}{
		"expr":   obj,
		"var":    c.String("var"),
		"at":     c.Float64("at"),
		"step":   cfg.Step,
		"order":  cfg.Order,
		"method": c.String("method"),
	}
	if c.IsSet("step") {
		params["step"] = c.Float64("step")
	}
	if c.IsSet("order") {
		params["order"] = c.Int("order")
	}
	bindings := map[string]interface{}{}
	for _, kv := range c.StringSlice("param") {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			return usageError.New("bad --param %q, want name=value", kv)
		}
		v, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return usageError.New("bad --param %q: %v", kv, err)
		}
		bindings[parts[0]] = v
	}
	params["params"] = bindings

	resp := cfg.Toolbox().Handle(findiff.ToolRequest{Tool: "derivative", Params: params})
	if resp.Error != "" {
		return findiff.ToolError.New("%s", resp.Error)
	}
	fmt.Fprintf(stdout, "%s\t(%d evaluations)\n", resp.String, resp.Evaluations)
	return nil
}
