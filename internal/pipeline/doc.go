// Package pipeline drives one platform build through its steps:
//
//	start -> decide -> (preprocess | skip_preprocess) -> toolchain_build
//	      -> manifest_sanitize (ios) -> publish -> run_after_build (android, --run) -> done
//
// Any step may end the pipeline in failed. Warnings degrade a step without
// failing the platform.
//
// A Session is shared by all pipelines of a run. It serializes the
// preprocessing decision so data is preprocessed at most once, and prompt
// suppression (skip-all) carries over to later platforms.
package pipeline
