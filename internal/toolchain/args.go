package toolchain

// HeadlessArgs returns the editor flags shared by every batch invocation.
func HeadlessArgs(projectPath, logFlag, logFile string) []string {
	if logFlag == "" {
		logFlag = "-logFile"
	}
	return []string{
		"-batchmode",
		"-nographics",
		"-quit",
		"-projectPath", projectPath,
		logFlag, logFile,
	}
}

// BuildArgs returns the full argument list for a player build.
func BuildArgs(projectPath, logFlag, logFile, buildTarget, method, outputPath, profile string, extra []string) []string {
	args := HeadlessArgs(projectPath, logFlag, logFile)
	args = append(args,
		"-buildTarget", buildTarget,
		"-executeMethod", method,
		"-customBuildPath", outputPath,
		"-profile", profile,
	)
	return append(args, extra...)
}
