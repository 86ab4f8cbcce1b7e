package mcpserver

// Tool descriptions with interpretation guidance for LLMs.

func describeCheckFiles() string {
	return `Analyzes C/C++ files for variable usage defects: unused variables,
reads of never-assigned variables, dead stores, allocations that are never
dereferenced, and struct members never read anywhere in a file.

USE WHEN:
- Reviewing C/C++ changes for dead or suspicious variable usage
- Cleaning up a file before refactoring
- Hunting uninitialized-read bugs (unassignedVariable findings)

INTERPRETING RESULTS:
- unassignedVariable: a path reads the variable before any assignment;
  in C/C++ this is undefined behavior, treat as the most urgent kind
- unreadVariable: the last assigned value is never read (dead store)
- unusedVariable: declared and never touched, safe to delete
- unusedAllocatedMemory: malloc/new result never dereferenced; the
  allocation (and any matching free) is pointless
- unusedStructMember: no code in the translation unit reads the member;
  members of packed/bitfield records and externally visible instances
  are exempt and never reported
- missingConfiguration (information severity): a type had no visible
  definition, so its variables were skipped; add side-effect-free types
  to safe_types to get findings for them

The analysis is per translation unit and fail-safe: variables touched by
constructs it cannot model produce no findings rather than wrong ones.`
}

func describeCheckSource() string {
	return `Analyzes an in-memory C/C++ snippet for variable usage defects.
Same finding kinds and semantics as check_files, without touching disk.

USE WHEN:
- Checking a patch or generated code before writing it to a file
- Demonstrating why a particular variable is flagged

The snippet must be a parsable translation unit: complete function
definitions, not loose statements.`
}
