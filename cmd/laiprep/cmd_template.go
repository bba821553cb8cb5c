package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// DefaultTemplateFile is where the template command writes when -o is omitted.
const DefaultTemplateFile = "patient_template.json"

type patientTemplate struct {
	PatientID            string   `json:"patient_id"`
	Population           string   `json:"population"`
	Age                  int      `json:"age"`
	CurrentPrEPStatus    string   `json:"current_prep_status"`
	Barriers             []string `json:"barriers"`
	HealthcareSetting    string   `json:"healthcare_setting"`
	InsuranceStatus      string   `json:"insurance_status"`
	RecentHIVTest        bool     `json:"recent_hiv_test"`
	TransportationAccess bool     `json:"transportation_access"`
	ChildcareNeeds       bool     `json:"childcare_needs"`
	Comment              string   `json:"_comment"`
	Comment2             string   `json:"_comment2"`
	Comment3             string   `json:"_comment3"`
}

func newPatientTemplate() patientTemplate {
	return patientTemplate{
		PatientID:            "patient_001",
		Population:           "MSM",
		Age:                  30,
		CurrentPrEPStatus:    "naive",
		Barriers:             []string{"SCHEDULING_CONFLICTS"},
		HealthcareSetting:    "COMMUNITY_HEALTH_CENTER",
		InsuranceStatus:      "insured",
		TransportationAccess: true,
		Comment:              "Valid populations: MSM, CISGENDER_WOMEN, TRANSGENDER_WOMEN, ADOLESCENT, PWID, PREGNANT_LACTATING, GENERAL",
		Comment2:             "Valid prep_status: naive, oral_prep, discontinued_oral",
		Comment3:             "See documentation for complete list of barriers and settings",
	}
}

func newTemplateCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "template",
		Short: "Generate a patient data template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := json.MarshalIndent(newPatientTemplate(), "", "  ")
			if err != nil {
				return err
			}
			if err := os.WriteFile(output, append(data, '\n'), 0644); err != nil {
				return fmt.Errorf("writing template: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ Template saved to: %s\n", output)
			fmt.Fprintln(out, "\nEdit this file with your patient data, then run:")
			fmt.Fprintf(out, "  laiprep assess -i %s -o results.json\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", DefaultTemplateFile, "Output template file")

	return cmd
}
