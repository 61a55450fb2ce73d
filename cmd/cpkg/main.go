package main

import (
	"archive/zip"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	codepush "github.com/evosec/react-native-code-push"
)

func main() {
	app := cli.NewApp()
	app.Name = filepath.Base(os.Args[0])
	app.Usage = "create, extract and inspect update packages"
	app.Commands = []cli.Command{
		{
			Name:      "extract",
			Usage:     "extract an update package into a directory",
			ArgsUsage: "<package> <destination>",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "encoding",
					Usage: "IANA name of the encoding for entry names not flagged as UTF-8",
				},
			},
			Action: extract,
		},
		{
			Name:      "create",
			Usage:     "package a directory tree as an update package",
			ArgsUsage: "<directory> <package>",
			Action:    create,
		},
		{
			Name:      "ls",
			Usage:     "list the entries of an update package",
			ArgsUsage: "<package>",
			Action:    list,
		},
	}

	if err := app.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}

func extract(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.NewExitError("usage: extract <package> <destination>", 1)
	}

	source, err := os.Open(c.Args().Get(0))
	if err != nil {
		return err
	}
	defer source.Close()

	z := codepush.Zip{TextEncoding: c.String("encoding")}
	return z.Extract(context.Background(), source, c.Args().Get(1))
}

func create(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.NewExitError("usage: create <directory> <package>", 1)
	}

	output, err := os.Create(c.Args().Get(1))
	if err != nil {
		return err
	}

	var z codepush.Zip
	if err := z.Archive(context.Background(), output, c.Args().Get(0)); err != nil {
		output.Close()
		codepush.DeleteFileSilently(output.Name())
		return err
	}
	return output.Close()
}

func list(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.NewExitError("usage: ls <package>", 1)
	}

	zr, err := zip.OpenReader(c.Args().Get(0))
	if err != nil {
		return err
	}
	defer zr.Close()

	for _, f := range zr.File {
		fmt.Printf("%12d  %s  %s\n",
			f.UncompressedSize64,
			f.Modified.Format("2006-01-02 15:04:05"),
			f.Name)
	}
	return nil
}
