// Package flags provides helpers for binding the migration flags to Cobra commands.
package flags

import (
	"github.com/spf13/cobra"
)

const (
	// IMSIFlagName names the repeatable IMSI flag.
	IMSIFlagName = "imsi"
	// IMSIFlagUsage describes the IMSI flag.
	IMSIFlagUsage = "IMSIs to migrate (repeatable, comma-separated)"
	// IdentifierFlagName is the legacy alias of IMSIFlagName.
	IdentifierFlagName = "identifier"
	// IMSIFileFlagName names the flag pointing at an IMSI list file.
	IMSIFileFlagName = "imsi-file"
	// IMSIFileFlagUsage describes the IMSI file flag.
	IMSIFileFlagUsage = "Files with comma- or newline-delimited IMSIs (repeatable)"
	// DestinationOrganizationFlagName names the destination organization flag.
	DestinationOrganizationFlagName = "destination-org"
	// DestinationOrganizationFlagUsage describes the destination organization flag.
	DestinationOrganizationFlagUsage = "Organization id the SIMs are reassigned to"
	// DryRunFlagName exposes the shared dry-run flag name.
	DryRunFlagName = "dry-run"
	// DryRunFlagUsage describes the shared dry-run flag purpose.
	DryRunFlagUsage = "Resolve everything but only preview the mutations"
	// MasterTokenFlagName names the master application token flag.
	MasterTokenFlagName = "app-token"
	// MasterTokenFlagUsage describes the master application token flag.
	MasterTokenFlagUsage = "Master organization application token (overrides the configured token source)"
	// EnterpriseTokenFlagName names the enterprise application token flag.
	EnterpriseTokenFlagName = "enterprise-app-token"
	// EnterpriseTokenFlagUsage describes the enterprise application token flag.
	EnterpriseTokenFlagUsage = "Enterprise organization application token (overrides the configured token source)"
)

// MigrationFlagValues stores the parsed migration flags.
type MigrationFlagValues struct {
	IMSIs                   []string
	LegacyIdentifiers       []string
	IMSIFiles               []string
	DestinationOrganization string
	DryRun                  bool
	MasterToken             string
	EnterpriseToken         string
}

// AllIMSIs returns the values of --imsi followed by the legacy --identifier alias.
func (values *MigrationFlagValues) AllIMSIs() []string {
	if values == nil {
		return nil
	}
	combined := make([]string, 0, len(values.IMSIs)+len(values.LegacyIdentifiers))
	combined = append(combined, values.IMSIs...)
	return append(combined, values.LegacyIdentifiers...)
}

// BindMigrationFlags attaches the migration flags to command and returns their storage.
func BindMigrationFlags(command *cobra.Command) *MigrationFlagValues {
	values := &MigrationFlagValues{}
	if command == nil {
		return values
	}

	flagSet := command.Flags()
	flagSet.StringSliceVar(&values.IMSIs, IMSIFlagName, nil, IMSIFlagUsage)
	flagSet.StringSliceVar(&values.LegacyIdentifiers, IdentifierFlagName, nil, IMSIFlagUsage)
	_ = flagSet.MarkHidden(IdentifierFlagName)
	flagSet.StringSliceVar(&values.IMSIFiles, IMSIFileFlagName, nil, IMSIFileFlagUsage)
	flagSet.StringVar(&values.DestinationOrganization, DestinationOrganizationFlagName, "", DestinationOrganizationFlagUsage)
	AddToggleFlag(flagSet, &values.DryRun, DryRunFlagName, false, DryRunFlagUsage)
	flagSet.StringVar(&values.MasterToken, MasterTokenFlagName, "", MasterTokenFlagUsage)
	flagSet.StringVar(&values.EnterpriseToken, EnterpriseTokenFlagName, "", EnterpriseTokenFlagUsage)

	return values
}
