package cmd

import (
	"fmt"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"admart/internal/config"
	"admart/internal/secrets"
	"admart/pkg/models"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Interactively create the admart configuration",
	Long: `Create the configuration file with an interactive wizard.

The wizard collects warehouse connection settings and vendor API
settings, encrypts credentials at rest, and can optionally store the
advertiser account ID in the OS keychain.`,
	Run: runInitWizard,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInitWizard(cmd *cobra.Command, args []string) {
	fmt.Println("🚀 admart configuration wizard")
	fmt.Println()

	if config.Exists() {
		var overwrite bool
		prompt := &survey.Confirm{
			Message: fmt.Sprintf("Configuration %s already exists. Overwrite?", config.GetConfigFile()),
			Default: false,
		}
		survey.AskOne(prompt, &overwrite)
		if !overwrite {
			fmt.Println("Initialization cancelled.")
			return
		}
	}

	cfg := &models.Config{}

	warehouseQuestions := []*survey.Question{
		{
			Name:     "account",
			Prompt:   &survey.Input{Message: "Warehouse account identifier:"},
			Validate: survey.Required,
		},
		{
			Name:     "username",
			Prompt:   &survey.Input{Message: "Warehouse username:"},
			Validate: survey.Required,
		},
		{
			Name:   "password",
			Prompt: &survey.Password{Message: "Warehouse password:"},
		},
		{
			Name:     "database",
			Prompt:   &survey.Input{Message: "Database:"},
			Validate: survey.Required,
		},
		{
			Name:   "warehouse",
			Prompt: &survey.Input{Message: "Compute warehouse:", Default: "COMPUTE_WH"},
		},
		{
			Name:   "role",
			Prompt: &survey.Input{Message: "Role:", Default: "LOADER"},
		},
	}

	var warehouseAnswers struct {
		Account   string
		Username  string
		Password  string
		Database  string
		Warehouse string
		Role      string
	}
	if err := survey.Ask(warehouseQuestions, &warehouseAnswers); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	cfg.Warehouse = models.WarehouseConfig{
		Account:   warehouseAnswers.Account,
		Username:  warehouseAnswers.Username,
		Password:  warehouseAnswers.Password,
		Database:  warehouseAnswers.Database,
		Warehouse: warehouseAnswers.Warehouse,
		Role:      warehouseAnswers.Role,
	}

	apiQuestions := []*survey.Question{
		{
			Name:     "baseurl",
			Prompt:   &survey.Input{Message: "Ads API base URL:"},
			Validate: survey.Required,
		},
		{
			Name:   "accesstoken",
			Prompt: &survey.Password{Message: "Ads API access token (blank to use the keychain):"},
		},
	}
	var apiAnswers struct {
		BaseURL     string
		AccessToken string
	}
	if err := survey.Ask(apiQuestions, &apiAnswers); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	cfg.API = models.APIConfig{
		BaseURL:     apiAnswers.BaseURL,
		AccessToken: apiAnswers.AccessToken,
	}

	if err := config.Save(cfg); err != nil {
		fmt.Printf("Error saving configuration: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ Configuration written to %s\n", config.GetConfigFile())

	var storeSecrets bool
	survey.AskOne(&survey.Confirm{
		Message: "Store an advertiser account ID in the OS keychain now?",
		Default: false,
	}, &storeSecrets)
	if storeSecrets {
		storeAdvertiserSecret()
	}

	fmt.Println()
	fmt.Println("✅ Initialization complete. Set COMPANY, PROJECT, PLATFORM,")
	fmt.Println("   DEPARTMENT, ACCOUNT, LAYER and MODE, then run 'admart update'.")
}

func storeAdvertiserSecret() {
	questions := []*survey.Question{
		{Name: "company", Prompt: &survey.Input{Message: "Company:"}, Validate: survey.Required},
		{Name: "department", Prompt: &survey.Input{Message: "Department:"}, Validate: survey.Required},
		{Name: "platform", Prompt: &survey.Input{Message: "Platform:"}, Validate: survey.Required},
		{Name: "account", Prompt: &survey.Input{Message: "Account:"}, Validate: survey.Required},
		{Name: "advertiserid", Prompt: &survey.Password{Message: "Advertiser account ID:"}, Validate: survey.Required},
	}
	var answers struct {
		Company      string
		Department   string
		Platform     string
		Account      string
		AdvertiserID string
	}
	if err := survey.Ask(questions, &answers); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	name := secrets.AccountIDName(answers.Company, answers.Department, answers.Platform, answers.Account)
	if err := secrets.NewStore().Put(name, answers.AdvertiserID); err != nil {
		fmt.Printf("Warning: failed to store secret: %v\n", err)
		return
	}
	fmt.Printf("✅ Stored keychain secret %s\n", name)
}
