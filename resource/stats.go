package resource

// Stats is a point-in-time aggregate over the registry.
//
// TotalResources is monotonic and never decreases. Outside the brief
// window of an in-flight unregister,
//
//	TotalResources == ActiveResources + CleanedResources + FailedCleanups
type Stats struct {
	// TotalResources counts every registration ever admitted.
	TotalResources int64

	// ActiveResources counts entries currently present in the registry.
	ActiveResources int64

	// CleanedResources counts entries whose release completed successfully
	// (a missing release callback counts as success).
	CleanedResources int64

	// FailedCleanups counts entries whose release returned an error or
	// exceeded the cleanup timeout. Such entries are still removed from
	// the registry; the underlying OS resource may have leaked.
	FailedCleanups int64

	// ByKind holds the live count per kind.
	ByKind map[Kind]int64

	// MemoryUsage is the summed SizeBytes of all live entries.
	MemoryUsage int64
}
