// Package approval gates new users behind a human approval step. A user signs
// in, submits a registration for a role, and stays pending until an approval
// administrator approves or rejects the submission.
//
// Source of truth:
//   - The approved, role and approval_admin custom claims held by the identity
//     provider decide what a user may do. The record store keeps the pending
//     submission and, once approved, the durable profile.
//   - Resolver derives ApprovalStatus from a freshly refreshed token plus the
//     two store records. Read failures resolve to status none and are never
//     reported as approved.
//
// Decisions:
//   - DecisionService runs the privileged operations (approve, reject, grant
//     admin, list the queue). Approve records an ApprovalIntent before setting
//     claims, writing the profile and marking the submission, so an approval
//     interrupted half way can be resumed with ResumeApproval.
//   - SubmissionStateMachine holds the status transition graph and the
//     resubmission policy. An approved submission is never reverted.
//
// Navigation:
//   - Guards project the resolved status onto the entry, registration and
//     admin routes. StatusWatcher emits status changes for long lived clients.
//
// Activity sinks:
//   - ActivitySink receives submission, decision, escalation and denied access
//     events. Sinks run best-effort (errors are logged) so you can forward to
//     metrics or a queue without blocking the request.
package approval
