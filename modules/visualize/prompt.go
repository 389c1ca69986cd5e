package visualize

import (
	"fmt"
	"strings"
)

// Stage directives for the screen visualization pipeline. Wording is a
// configuration concern; the orchestrator only cares that each stage
// gets exactly one directive.

const cleanseDirective = "Edit this image. Remove all visual clutter (hoses, trash, debris, garbage cans, toys, loose leaves). " +
	"Fix the lighting. Do not remove structural elements like columns, fans, lights, furniture, or concrete pads. " +
	"Do not change the house structure or camera angle. Keep the canvas exact."

const buildOutDirective = "Edit this image. Add structural build-outs (columns or headers) where the opening lacks a frame " +
	"suitable for mounting a motorized screen. Ensure the new structure matches the house texture and blends with the environment. " +
	"Do not change anything else. Do not change the camera angle or perspective."

const analysisQuestion = "Analyze this image of a house. Does the patio or outdoor area require structural build-out " +
	"(like pillars, beams, or headers) to support a motorized screen? Answer with YES or NO only."

// BuildInstallDirective - directive for the screen install stage.
// The strict variant tightens constraints for the single quality-gate
// retry; guidance from the quality check is appended when present.
func BuildInstallDirective(opacity, color string, hasReference, strict bool, guidance string) string {
	if opacity == "" {
		opacity = defaultOpacity
	}

	var colorInstruction string
	if hasReference {
		// With a reference the color comes from the reference texture
		colorInstruction = "Match the screen color and texture to the Reference Image."
	} else {
		if color == "" {
			color = "black"
		}
		colorInstruction = fmt.Sprintf("Screen Color: %s.", color)
	}

	var b strings.Builder
	b.WriteString("Edit this image. ")
	if hasReference {
		b.WriteString("Using the Reference Image for texture: ")
	}
	b.WriteString("Install motorized screens into the openings. ")
	b.WriteString(colorInstruction)
	fmt.Fprintf(&b, " Opacity: %s%%. ", opacity)
	b.WriteString("The screens must be down. The image must remain clean overall (no clutter re-appearing). ")
	b.WriteString("Maintain high-fidelity architectural details. Do not change the perspective.")

	if strict {
		b.WriteString(" STRICT MODE: follow every constraint above exactly. ")
		b.WriteString("Every opening must be screened. Preserve the camera angle and all structure pixel-for-pixel outside the openings.")
	}
	if guidance != "" {
		fmt.Fprintf(&b, " Additional correction: %s", guidance)
	}

	return b.String()
}

// BuildQualityQuestion - acceptance question for the quality gate
func BuildQualityQuestion(screenType, opacity, color string) string {
	if opacity == "" {
		opacity = defaultOpacity
	}
	if color == "" {
		color = "black"
	}
	return fmt.Sprintf(`Check this image against these constraints:
Is the fabric color consistent with a %s screen?
Is the opacity consistent with %s%% %s screens?
Are ALL openings screened?
Is the image clean (no hallucinated trash or artifacts)?
Answer YES if every constraint holds, otherwise answer NO followed by one short line describing what to fix.`,
		color, opacity, screenType)
}
