package cli

import (
	"trivia-match/internal/domain"
	"trivia-match/internal/infra/file"
)

// sampleBank is served when neither postgres nor a bank file is configured.
func sampleBank() domain.Bank {
	q := func(id, prompt, a, b, c, d string, correct domain.Choice, why string) domain.Question {
		return domain.Question{
			ID:     id,
			Prompt: prompt,
			Options: map[domain.Choice]string{
				domain.ChoiceA: a,
				domain.ChoiceB: b,
				domain.ChoiceC: c,
				domain.ChoiceD: d,
			},
			CorrectOption: correct,
			Explanation:   why,
		}
	}
	return domain.Bank{
		ID: file.DefaultBankID,
		Questions: []domain.Question{
			q("1", "What is the minimum duration of hand rubbing with alcohol-based solution?",
				"5 seconds", "10 seconds", "20 to 30 seconds", "2 minutes",
				domain.ChoiceC, "Alcohol rub needs 20 to 30 seconds to cover every surface of the hands."),
			q("2", "Which precaution applies to a patient with suspected tuberculosis?",
				"Contact", "Droplet", "Airborne", "Standard only",
				domain.ChoiceC, "Tuberculosis spreads through aerosols, so an N95 respirator and a negative pressure room are required."),
			q("3", "When must hand hygiene be performed?",
				"Only after touching a patient", "Before and after patient contact", "Only when hands look dirty", "Only before procedures",
				domain.ChoiceB, "The five moments include both before and after patient contact."),
			q("4", "Where should a used needle be discarded?",
				"Common bin", "Infectious waste bag", "Rigid sharps container", "Recycling bin",
				domain.ChoiceC, "Sharps go into a puncture-resistant container and are never recapped."),
			q("5", "Which item belongs to contact precautions?",
				"Gown and gloves", "Surgical mask only", "N95 respirator", "Face shield only",
				domain.ChoiceA, "Gown and gloves stop transmission through direct and indirect contact."),
			q("6", "What should be done with gloves between two patients?",
				"Wash them with alcohol", "Keep them if they look clean", "Remove them and perform hand hygiene", "Put a new pair over them",
				domain.ChoiceC, "Gloves are single use. Remove them and clean hands before the next patient."),
			q("7", "Which surface is cleaned most often?",
				"Ceiling", "High-touch surfaces near the patient", "Windows", "Outer walls",
				domain.ChoiceB, "Bed rails, tables and switches are touched constantly and concentrate contamination."),
			q("8", "Which precaution applies to influenza?",
				"Airborne", "Droplet", "Contact only", "None",
				domain.ChoiceB, "Influenza spreads through large droplets, so a surgical mask is required within close range."),
		},
	}
}
