// Command voucher is the operator tool for the voucher issuer key: it
// generates keypairs, signs vouchers offline and signs login challenges.
package main

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/presale/backend/internal/domain/shared/valueobject"
	"github.com/presale/backend/internal/domain/voucher"
	"github.com/presale/backend/internal/infrastructure/keystore"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var errUsage = errors.New("usage")

func main() {
	if err := run(os.Args[1:], os.Stdout, time.Now); err != nil {
		if errors.Is(err, errUsage) {
			printUsage(os.Stderr)
		} else {
			fmt.Fprintf(os.Stderr, "voucher: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(args []string, out io.Writer, now func() time.Time) error {
	if len(args) == 0 {
		return errUsage
	}
	switch args[0] {
	case "keygen":
		return keygen(args[1:], out)
	case "issue":
		return issue(args[1:], out, now)
	case "sign":
		return sign(args[1:], out)
	case "identity":
		return identity(args[1:], out)
	default:
		return errUsage
	}
}

func keygen(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	path := fs.String("out", "", "Keypair file to write")
	force := fs.Bool("force", false, "Overwrite an existing keypair")
	passEnv := passphraseFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" {
		return fmt.Errorf("-out is required")
	}
	if _, err := os.Stat(*path); err == nil && !*force {
		return fmt.Errorf("%s exists; pass -force to overwrite", *path)
	}

	passphrase, err := readPassphrase(*passEnv)
	if err != nil {
		return err
	}
	priv, err := keystore.Generate()
	if err != nil {
		return err
	}
	if passphrase != "" {
		err = keystore.SaveSealed(*path, priv, passphrase)
	} else {
		err = keystore.Save(*path, priv)
	}
	if err != nil {
		return err
	}
	return printIdentity(out, priv)
}

func identity(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("identity", flag.ContinueOnError)
	path := fs.String("key", "", "Keypair file")
	passEnv := passphraseFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	priv, err := loadKey(*path, *passEnv)
	if err != nil {
		return err
	}
	return printIdentity(out, priv)
}

func passphraseFlag(fs *flag.FlagSet) *string {
	return fs.String("passphrase-env", "", "Environment variable holding the keypair passphrase")
}

// readPassphrase returns "" when no variable is named. A named variable
// that is unset or empty is an error.
func readPassphrase(envName string) (string, error) {
	if envName == "" {
		return "", nil
	}
	passphrase := os.Getenv(envName)
	if passphrase == "" {
		return "", fmt.Errorf("%s is empty", envName)
	}
	return passphrase, nil
}

func loadKey(path, passEnv string) (ed25519.PrivateKey, error) {
	passphrase, err := readPassphrase(passEnv)
	if err != nil {
		return nil, err
	}
	return keystore.Load(path, passphrase)
}

func printIdentity(out io.Writer, priv ed25519.PrivateKey) error {
	id, err := valueobject.IdentityFromPublicKey(priv.Public().(ed25519.PublicKey))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, id.String())
	return err
}

// issuedVoucher matches the voucher and signature fields of a purchase request
type issuedVoucher struct {
	Voucher   voucher.Voucher      `json:"voucher"`
	Signature string               `json:"signature"`
	Signer    valueobject.Identity `json:"signer"`
}

func issue(args []string, out io.Writer, now func() time.Time) error {
	fs := flag.NewFlagSet("issue", flag.ContinueOnError)
	path := fs.String("key", "", "Issuer keypair file")
	buyer := fs.String("buyer", "", "Buyer identity")
	sale := fs.String("sale", "", "Sale address")
	maxAllocation := fs.Uint64("max", 0, "Maximum allocation in whole tokens")
	ttl := fs.Duration("ttl", 24*time.Hour, "Validity from now")
	expiry := fs.Int64("expiry", 0, "Absolute expiry as unix seconds; overrides -ttl")
	passEnv := passphraseFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	buyerID, err := valueobject.ParseIdentity(*buyer)
	if err != nil {
		return fmt.Errorf("invalid -buyer: %w", err)
	}
	saleID, err := valueobject.ParseIdentity(*sale)
	if err != nil {
		return fmt.Errorf("invalid -sale: %w", err)
	}
	priv, err := loadKey(*path, *passEnv)
	if err != nil {
		return err
	}
	issuer, err := voucher.NewIssuer(priv)
	if err != nil {
		return err
	}

	issuedAt := now()
	expiresAt := *expiry
	if expiresAt == 0 {
		expiresAt = issuedAt.Add(*ttl).Unix()
	}
	sv, err := issuer.Issue(voucher.IssueParams{
		Buyer:         buyerID,
		Sale:          saleID,
		MaxAllocation: *maxAllocation,
		Expiry:        expiresAt,
	}, issuedAt)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(issuedVoucher{
		Voucher:   sv.Voucher,
		Signature: voucher.EncodeSignature(sv.Signature),
		Signer:    sv.Signer,
	})
}

func sign(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("sign", flag.ContinueOnError)
	path := fs.String("key", "", "Keypair file")
	message := fs.String("challenge", "", "Login challenge to sign")
	passEnv := passphraseFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *message == "" {
		return fmt.Errorf("-challenge is required")
	}
	priv, err := loadKey(*path, *passEnv)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, base64.StdEncoding.EncodeToString(ed25519.Sign(priv, []byte(*message))))
	return err
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `Voucher issuer tool

Usage:
  voucher <command> [flags]

Commands:
  keygen    -out <file> [-force]                 Generate an issuer keypair
  identity  -key <file>                          Print the keypair's identity
  issue     -key <file> -buyer <id> -sale <id>   Sign a purchase voucher
            -max <n> [-ttl 24h | -expiry <unix>]
  sign      -key <file> -challenge <text>        Sign a login challenge

Every command accepts -passphrase-env <VAR> naming the variable that holds
the passphrase. keygen then writes a sealed keypair; the other commands need
it to open one. Plain keypair files hold the 64-byte seed and public key as
a JSON byte array.`)
}
