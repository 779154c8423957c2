// Package domain defines the core business types for the birthday wishes engine.
//
// Types in this package are plain value objects: profiles, wishes, group
// wishes, contributions and the bookkeeping records of the periodic jobs.
// State changes never happen here; they live in the service packages, which
// operate on these values through repository interfaces.
//
// Rules for this package:
//   - No imports from other internal/ packages
//   - No *sql.DB, no http.Request, no context.Context in struct fields
//   - JSON/DB tags are allowed (they're metadata, not behavior)
//   - Validation methods are allowed (they're pure functions on the type)
//   - Constants, enums and the error taxonomy belong here
package domain
