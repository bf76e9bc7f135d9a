// Command totpgen prints RFC 6238 one-time passwords for Base32
// secrets given on the command line, imported from otpauth:// URIs,
// or kept in an encrypted local vault.
package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/opsbits/totpgen"
	"github.com/opsbits/totpgen/otp"
	"github.com/opsbits/totpgen/vault"
)

func main() {
	app := &cli.App{
		Name:  "totpgen",
		Usage: "generate RFC 6238 one-time passwords",
		Commands: []*cli.Command{
			codeCommand(),
			addCommand(),
			lsCommand(),
			rmCommand(),
			uriCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "totpgen:", err)
		os.Exit(1)
	}
}

// genFlags are the generation parameters shared by code and add.
func genFlags() []cli.Flag {
	return []cli.Flag{
		&cli.Int64Flag{
			Name:    "period",
			Aliases: []string{"p", "interval"},
			Usage:   "time step in seconds (30-120)",
			Value:   otp.DefaultPeriod,
		},
		&cli.IntFlag{
			Name:    "digits",
			Aliases: []string{"d"},
			Usage:   "code length (5-9)",
			Value:   otp.DefaultDigits,
		},
		&cli.StringFlag{
			Name:    "algo",
			Aliases: []string{"a"},
			Usage:   "HMAC hash: SHA1, SHA256, or SHA512",
			Value:   string(otp.DefaultAlgorithm),
		},
	}
}

func vaultFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "vault",
		Usage:   "path to the secret vault",
		EnvVars: []string{"TOTPGEN_VAULT"},
	}
}

func codeCommand() *cli.Command {
	return &cli.Command{
		Name:      "code",
		Usage:     "print the current one-time password",
		ArgsUsage: "[SECRET]",
		Flags: append(genFlags(),
			&cli.StringFlag{
				Name:    "uri",
				Aliases: []string{"u"},
				Usage:   "otpauth:// URI instead of a bare secret",
			},
			&cli.StringFlag{
				Name:    "entry",
				Aliases: []string{"e"},
				Usage:   "generate for a vault entry",
			},
			&cli.Int64Flag{
				Name:    "time",
				Aliases: []string{"t"},
				Usage:   "Unix timestamp to generate for (default: now)",
			},
			&cli.BoolFlag{
				Name:  "ttn",
				Usage: "also print seconds until the code rotates",
			},
			vaultFlag(),
		),
		Action: codeAction,
	}
}

func codeAction(ctx *cli.Context) error {
	var seconds int64 = time.Now().Unix()
	if ctx.IsSet("time") {
		seconds = ctx.Int64("time")
	}

	if ctx.String("entry") != "" {
		return vaultCode(ctx, seconds)
	}

	if uri := ctx.String("uri"); uri != "" {
		entry, err := totpgen.FromURI(uri)
		if err != nil {
			return err
		}

		if err := applyOverrides(ctx, entry); err != nil {
			return err
		}

		code, err := totpgen.CodeForEntryAt(entry, seconds)
		if err != nil {
			return err
		}

		printCode(ctx, code, entry, seconds)

		return nil
	}

	secret := ctx.Args().First()
	if secret == "" {
		return errors.New("a secret, --uri, or --entry is required")
	}

	// Flag values go to the engine unmodified so out-of-range values
	// fail instead of being silently defaulted
	opts := otp.Options{
		Period:    ctx.Int64("period"),
		Digits:    ctx.Int("digits"),
		Algorithm: otp.Algorithm(ctx.String("algo")),
	}

	pass, err := otp.GenerateTOTPAt(secret, opts, seconds)
	if err != nil {
		return err
	}

	printCode(ctx, pass.String(), &vault.Entry{Type: vault.TypeTOTP, Period: opts.Period}, seconds)

	return nil
}

// vaultCode generates a code for a stored entry. Advancing an HOTP
// counter is persisted before the code is printed.
func vaultCode(ctx *cli.Context, seconds int64) error {
	path, err := vaultPath(ctx)
	if err != nil {
		return err
	}

	pwd, err := passphrase(false)
	if err != nil {
		return err
	}
	defer otp.Wipe(pwd)

	v, err := vault.Load(path, pwd)
	if err != nil {
		return err
	}

	entry, err := v.Entry(ctx.String("entry"))
	if err != nil {
		return err
	}

	if err := applyOverrides(ctx, entry); err != nil {
		return err
	}

	code, err := totpgen.CodeForEntryAt(entry, seconds)
	if err != nil {
		return err
	}

	if entry.Type == vault.TypeHOTP {
		if err := vault.Save(path, pwd, v); err != nil {
			return err
		}
	}

	printCode(ctx, code, entry, seconds)

	return nil
}

func addCommand() *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "store a secret in the vault",
		ArgsUsage: "NAME [SECRET]",
		Flags: append(genFlags(),
			&cli.StringFlag{
				Name:    "uri",
				Aliases: []string{"u"},
				Usage:   "import from an otpauth:// URI",
			},
			&cli.BoolFlag{
				Name:  "hotp",
				Usage: "store a counter-based entry",
			},
			&cli.Uint64Flag{
				Name:  "counter",
				Usage: "initial counter for an HOTP entry",
			},
			vaultFlag(),
		),
		Action: addAction,
	}
}

func addAction(ctx *cli.Context) error {
	var entry *vault.Entry
	var err error

	if uri := ctx.String("uri"); uri != "" {
		entry, err = totpgen.FromURI(uri)
		if err != nil {
			return err
		}

		if name := ctx.Args().First(); name != "" {
			entry.Name = name
		}
	} else {
		name, secret := ctx.Args().Get(0), ctx.Args().Get(1)
		if name == "" || secret == "" {
			return errors.New("a name and a secret (or --uri) are required")
		}

		entry = &vault.Entry{Name: name, Type: vault.TypeTOTP, Secret: secret}

		if ctx.Bool("hotp") {
			entry.Type = vault.TypeHOTP
			entry.Counter = ctx.Uint64("counter")
		}
	}

	if entry.Name == "" {
		return errors.New("the entry has no name")
	}

	if err := applyOverrides(ctx, entry); err != nil {
		return err
	}

	// Trial generation validates the secret and parameters before
	// anything is written. The copy keeps an HOTP counter unburned.
	trial := *entry
	if _, err := totpgen.CodeForEntryAt(&trial, time.Now().Unix()); err != nil {
		return err
	}

	path, err := vaultPath(ctx)
	if err != nil {
		return err
	}

	var v *vault.Vault
	var created bool

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		v = &vault.Vault{}
		created = true
	}

	pwd, err := passphrase(created)
	if err != nil {
		return err
	}
	defer otp.Wipe(pwd)

	if !created {
		v, err = vault.Load(path, pwd)
		if err != nil {
			return err
		}
	}

	v.Put(*entry)

	if err := vault.Save(path, pwd, v); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "added %v\n", entry.Name)

	return nil
}

func lsCommand() *cli.Command {
	return &cli.Command{
		Name:  "ls",
		Usage: "list vault entries",
		Flags: []cli.Flag{vaultFlag()},
		Action: func(ctx *cli.Context) error {
			path, err := vaultPath(ctx)
			if err != nil {
				return err
			}

			pwd, err := passphrase(false)
			if err != nil {
				return err
			}
			defer otp.Wipe(pwd)

			v, err := vault.Load(path, pwd)
			if err != nil {
				return err
			}

			for _, entry := range v.Entries {
				fmt.Println(entry)
			}

			return nil
		},
	}
}

func rmCommand() *cli.Command {
	return &cli.Command{
		Name:      "rm",
		Usage:     "remove a vault entry",
		ArgsUsage: "NAME",
		Flags:     []cli.Flag{vaultFlag()},
		Action: func(ctx *cli.Context) error {
			name := ctx.Args().First()
			if name == "" {
				return errors.New("an entry name is required")
			}

			path, err := vaultPath(ctx)
			if err != nil {
				return err
			}

			pwd, err := passphrase(false)
			if err != nil {
				return err
			}
			defer otp.Wipe(pwd)

			v, err := vault.Load(path, pwd)
			if err != nil {
				return err
			}

			if err := v.Remove(name); err != nil {
				return err
			}

			return vault.Save(path, pwd, v)
		},
	}
}

func uriCommand() *cli.Command {
	return &cli.Command{
		Name:      "uri",
		Usage:     "show the parameters of an otpauth:// URI",
		ArgsUsage: "OTPAUTH_URI",
		Action: func(ctx *cli.Context) error {
			uri := ctx.Args().First()
			if uri == "" {
				return errors.New("an otpauth:// URI is required")
			}

			entry, err := totpgen.FromURI(uri)
			if err != nil {
				return err
			}

			fmt.Println(entry)
			fmt.Printf("secret: %v\n", entry.Secret)

			return nil
		},
	}
}

// applyOverrides copies explicitly set generation flags onto the
// entry. Explicit values are validated as given, so an out-of-range
// override fails instead of being silently defaulted.
func applyOverrides(ctx *cli.Context, entry *vault.Entry) error {
	opts := otp.Options{
		Period:    entry.Period,
		Digits:    entry.Digits,
		Algorithm: otp.Algorithm(entry.Algo),
	}.WithDefaults()

	if ctx.IsSet("period") {
		opts.Period = ctx.Int64("period")
	}
	if ctx.IsSet("digits") {
		opts.Digits = ctx.Int("digits")
	}
	if ctx.IsSet("algo") {
		opts.Algorithm = otp.Algorithm(ctx.String("algo"))
	}

	if err := opts.Validate(); err != nil {
		return err
	}

	entry.Period = opts.Period
	entry.Digits = opts.Digits
	entry.Algo = string(opts.Algorithm)

	return nil
}

func printCode(ctx *cli.Context, code string, entry *vault.Entry, seconds int64) {
	fmt.Println(code)

	if ctx.Bool("ttn") && entry.Type != vault.TypeHOTP {
		var period int64 = entry.Period
		if period == 0 {
			period = otp.DefaultPeriod
		}

		// The window must describe the generation time, which --time
		// may have moved off the wall clock
		var ttn int64
		if ctx.IsSet("time") {
			ttn = totpgen.TTNAt(seconds, period)
		} else {
			ttn = totpgen.TTNPer(period)
		}

		fmt.Fprintf(os.Stderr, "valid for %vs\n", (ttn+999)/1000)
	}
}

func vaultPath(ctx *cli.Context) (string, error) {
	if path := ctx.String("vault"); path != "" {
		return path, nil
	}

	return totpgen.DefaultVaultPath()
}

// passphrase reads the vault passphrase without echo, or from
// TOTPGEN_PASSPHRASE for scripted use.
func passphrase(confirm bool) ([]byte, error) {
	if env, ok := os.LookupEnv("TOTPGEN_PASSPHRASE"); ok {
		return []byte(env), nil
	}

	pwd, err := prompt("Passphrase: ")
	if err != nil {
		return nil, err
	}

	if len(pwd) == 0 {
		return nil, errors.New("empty passphrase")
	}

	if confirm {
		again, err := prompt("Confirm passphrase: ")
		if err != nil {
			return nil, err
		}

		if !bytes.Equal(pwd, again) {
			return nil, errors.New("passphrases do not match")
		}
		otp.Wipe(again)
	}

	return pwd, nil
}

func prompt(msg string) ([]byte, error) {
	fmt.Fprint(os.Stderr, msg)

	pwd, err := term.ReadPassword(int(os.Stdin.Fd()))

	fmt.Fprintln(os.Stderr)

	return pwd, err
}
