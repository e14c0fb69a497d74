package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"synthgear/internal/age"
	"synthgear/internal/dicomhdr"
)

type ageOutput struct {
	Months *int   `json:"months"`
	Age    string `json:"age"`
	Source string `json:"source"`
	Sex    string `json:"sex,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func newAgeCommand() *cobra.Command {
	var (
		custom     string
		patientAge string
		birthDate  string
		seriesDate string
		dicomPath  string
		jsonOut    bool
	)

	cmd := &cobra.Command{
		Use:         "age",
		Short:       "Resolve an age in months from explicit fields or a DICOM file",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var header dicomhdr.Header
			if path := strings.TrimSpace(dicomPath); path != "" {
				read, err := dicomhdr.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read dicom: %w", err)
				}
				header = read
			}
			if v := strings.TrimSpace(patientAge); v != "" {
				header.PatientAge = v
			}
			if v := strings.TrimSpace(birthDate); v != "" {
				header.PatientBirthDate = v
			}
			if v := strings.TrimSpace(seriesDate); v != "" {
				header.SeriesDate = v
			}

			var customAge any
			if v := strings.TrimSpace(custom); v != "" {
				customAge = v
			}
			result := age.Resolve(header.Bundle(customAge))

			out := ageOutput{
				Age:    result.AgeString(),
				Source: result.Source.String(),
				Sex:    header.PatientSex,
			}
			if result.Known {
				months := result.Months
				out.Months = &months
			}
			if result.Reason != nil {
				out.Reason = result.Reason.Error()
			}
			if jsonOut {
				return writeJSON(cmd, out)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Age:    %s\n", out.Age)
			fmt.Fprintf(w, "Source: %s\n", out.Source)
			if out.Sex != "" {
				fmt.Fprintf(w, "Sex:    %s\n", out.Sex)
			}
			if out.Reason != "" {
				fmt.Fprintf(w, "Reason: %s\n", out.Reason)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&custom, "custom", "", "Custom age in months (session info)")
	cmd.Flags().StringVar(&patientAge, "patient-age", "", "DICOM PatientAge, e.g. 045D, 052W, 018M, 002Y")
	cmd.Flags().StringVar(&birthDate, "birth-date", "", "DICOM PatientBirthDate (YYYYMMDD)")
	cmd.Flags().StringVar(&seriesDate, "series-date", "", "DICOM SeriesDate (YYYYMMDD)")
	cmd.Flags().StringVar(&dicomPath, "dicom", "", "Read fields from a DICOM file; explicit flags override it")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}
