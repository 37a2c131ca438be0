package fhir

import (
	"strings"

	"github.com/Gobusters/ectolinq"

	"github.com/Ramsey-B/fern/pkg/models"
)

const resourceTypePatient = "Patient"

// toCandidateRecords converts the Patient entries of a bundle
func toCandidateRecords(bundle *Bundle) []models.CandidateRecord {
	entries := ectolinq.Filter(bundle.Entry, func(entry BundleEntry) bool {
		return entry.Resource.ResourceType == resourceTypePatient &&
			(entry.Search == nil || entry.Search.Mode != "outcome")
	})

	return ectolinq.Map(entries, func(entry BundleEntry) models.CandidateRecord {
		return toCandidateRecord(entry.Resource)
	})
}

func toCandidateRecord(patient Patient) models.CandidateRecord {
	return models.CandidateRecord{
		ResourceID: patient.ID,
		Names: ectolinq.Map(patient.Name, func(name HumanName) models.HumanName {
			return models.HumanName{
				Use:    name.Use,
				Given:  name.Given,
				Family: strings.Fields(name.Family),
			}
		}),
		Addresses: ectolinq.Map(patient.Address, func(address Address) models.Address {
			return models.Address{
				Use:        address.Use,
				Lines:      address.Line,
				City:       address.City,
				State:      address.State,
				PostalCode: address.PostalCode,
			}
		}),
		Telecoms: ectolinq.Map(patient.Telecom, func(telecom ContactPoint) models.Telecom {
			return models.Telecom{
				System: telecom.System,
				Use:    telecom.Use,
				Value:  telecom.Value,
			}
		}),
		BirthDate: patient.BirthDate,
		Gender:    patient.Gender,
		Identifiers: ectolinq.Map(patient.Identifier, func(identifier Identifier) models.Identifier {
			return models.Identifier{
				System: identifier.System,
				Type:   identifier.Type.Label(),
				Value:  identifier.Value,
			}
		}),
	}
}
