/*
Package membership implements the membership and card lifecycle rules:

  - consolidation: creating a bank membership whose name already exists
    for the user merges the new cards into the existing record instead
    of duplicating it
  - cascade deletion: removing the last card of a bank membership
    deletes the membership in the same logical operation
  - duplicate repair: ConsolidateDuplicates merges same-named records
    left behind by concurrent creates
  - staged commands: status changes are applied optimistically and
    rolled back if the store write fails

Every multi-step operation is a read-modify-write against the store and
retries on version conflicts instead of overwriting concurrent updates.
*/
package membership
