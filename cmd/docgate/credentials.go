package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/sagarc03/docgate"
	"github.com/sagarc03/docgate/config"
	"github.com/sagarc03/docgate/credential"
)

var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Inspect and manage signing credentials",
}

var credentialsCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Resolve the credential chain and report the winning provider",
	Long: `Run the configured credential chain once, in order, and report which
provider supplied the credential. Key material is never printed.`,
	Args: cobra.NoArgs,
	RunE: runCredentialsCheck,
}

var credentialsAddCmd = &cobra.Command{
	Use:   "add <profile>",
	Short: "Add a profile to the credentials file",
	Long: `Add a profile to the credentials file interactively.

You will be prompted for:
  - Tenancy OCID
  - User OCID
  - API key fingerprint
  - Path to the PEM private key
  - Region (optional)
  - Whether to set as default

The key is loaded and used to sign a test request before saving.`,
	Args: cobra.ExactArgs(1),
	RunE: runCredentialsAdd,
}

var credentialsFile string

var fingerprintPattern = regexp.MustCompile(`^[0-9a-fA-F]{2}(:[0-9a-fA-F]{2}){15}$`)

func init() {
	credentialsAddCmd.Flags().StringVar(&credentialsFile, "file", credential.DefaultFilePath(), "credentials file to write")

	credentialsCmd.AddCommand(credentialsCheckCmd)
	credentialsCmd.AddCommand(credentialsAddCmd)
	rootCmd.AddCommand(credentialsCmd)
}

func runCredentialsCheck(cmd *cobra.Command, _ []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	chain, err := credential.NewChainFromConfig(cfg.Credentials, nil)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Providers: %s\n", strings.Join(chain.Providers(), " -> "))

	cred, source, err := chain.ResolveWithSource(cmd.Context())
	if err != nil {
		return fmt.Errorf("resolve credential: %w", err)
	}

	_, _ = fmt.Fprintf(out, "Resolved from: %s\n", source)
	_, _ = fmt.Fprintf(out, "  tenancy:     %s\n", cred.TenancyID)
	_, _ = fmt.Fprintf(out, "  user:        %s\n", cred.UserID)
	_, _ = fmt.Fprintf(out, "  fingerprint: %s\n", cred.Fingerprint)
	if cred.Region != "" {
		_, _ = fmt.Fprintf(out, "  region:      %s\n", cred.Region)
	}

	if err := trySign(cred); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(out, "Private key parsed and signed a test request.")

	return nil
}

// trySign signs a throwaway request to prove the key material is usable.
func trySign(cred docgate.Credential) error {
	region := cred.Region
	if region == "" {
		region = "us-ashburn-1"
	}

	desc, err := docgate.NewRequestDescriptor("GET",
		docgate.BucketFromRegion(region, "namespace", "bucket").ListURL(docgate.ListOptions{}), nil, nil)
	if err != nil {
		return err
	}

	if _, err := docgate.NewRequestSigner(docgate.SignerConfig{}).Sign(desc, cred); err != nil {
		return fmt.Errorf("test signature: %w", err)
	}
	return nil
}

func runCredentialsAdd(cmd *cobra.Command, args []string) error {
	name := args[0]
	path := credentialsFile
	if path == "" {
		return errors.New("no credentials file path; pass --file")
	}

	file, err := credential.LoadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load credentials: %w", err)
		}
		file = &credential.File{}
	}

	if names := file.ProfileNames(); len(names) > 0 {
		fmt.Printf("Profiles in %s: %s\n", path, strings.Join(names, ", "))
	}

	if existing, _ := file.GetProfile(name); existing != nil {
		prompt := promptui.Prompt{
			Label:     fmt.Sprintf("Profile '%s' already exists. Replace it", name),
			IsConfirm: true,
		}
		if _, promptErr := prompt.Run(); promptErr != nil {
			fmt.Println("Cancelled.")
			return nil //nolint:nilerr // User cancelled, not an error
		}
		removeProfile(file, name)
	}

	tenancy, err := runPrompt(promptui.Prompt{
		Label:    "Tenancy OCID",
		Validate: ocidValidator("ocid1.tenancy."),
	})
	if err != nil {
		return handlePromptError(err)
	}

	user, err := runPrompt(promptui.Prompt{
		Label:    "User OCID",
		Validate: ocidValidator("ocid1.user."),
	})
	if err != nil {
		return handlePromptError(err)
	}

	fingerprint, err := runPrompt(promptui.Prompt{
		Label: "Key fingerprint",
		Validate: func(input string) error {
			if !fingerprintPattern.MatchString(input) {
				return errors.New("expected 16 colon separated hex pairs")
			}
			return nil
		},
	})
	if err != nil {
		return handlePromptError(err)
	}

	keyFile, err := runPrompt(promptui.Prompt{
		Label: "Private key file",
		Validate: func(input string) error {
			if input == "" {
				return errors.New("key file is required")
			}
			return nil
		},
	})
	if err != nil {
		return handlePromptError(err)
	}

	region, err := runPrompt(promptui.Prompt{
		Label: "Region (optional)",
	})
	if err != nil {
		return handlePromptError(err)
	}

	setAsDefault := len(file.Profiles) == 0
	if !setAsDefault {
		prompt := promptui.Prompt{
			Label:     "Set as default profile",
			IsConfirm: true,
		}
		_, promptErr := prompt.Run()
		setAsDefault = promptErr == nil
	}

	profile := credential.Profile{
		Name:        name,
		Tenancy:     tenancy,
		User:        user,
		Fingerprint: fingerprint,
		KeyFile:     keyFile,
		Region:      region,
		Default:     setAsDefault,
	}
	if err := file.AddProfile(profile); err != nil {
		return err
	}

	if err := file.Save(path); err != nil {
		return err
	}

	cred, found, err := credential.NewFileProvider(path, name).Resolve(cmd.Context())
	if err == nil && !found {
		err = fmt.Errorf("profile %s not readable after save: %w", name, credential.ErrProfileNotFound)
	}
	if err == nil {
		err = trySign(cred)
	}
	if err != nil {
		fmt.Printf("Profile '%s' saved to %s, but it cannot sign yet: %v\n", name, path, err)
		return nil
	}

	fmt.Printf("Profile '%s' saved to %s\n", name, path)
	return nil
}

func runPrompt(p promptui.Prompt) (string, error) {
	v, err := p.Run()
	return strings.TrimSpace(v), err
}

func ocidValidator(prefix string) promptui.ValidateFunc {
	return func(input string) error {
		if !strings.HasPrefix(strings.TrimSpace(input), prefix) {
			return fmt.Errorf("must start with %s", prefix)
		}
		return nil
	}
}

func removeProfile(f *credential.File, name string) {
	kept := f.Profiles[:0]
	for _, p := range f.Profiles {
		if p.Name != name {
			kept = append(kept, p)
		}
	}
	f.Profiles = kept
}

// handlePromptError handles promptui errors.
func handlePromptError(err error) error {
	if errors.Is(err, promptui.ErrInterrupt) {
		fmt.Println("\nCancelled.")
		os.Exit(0)
	}
	if errors.Is(err, promptui.ErrAbort) {
		fmt.Println("Cancelled.")
		return nil
	}
	return err
}
