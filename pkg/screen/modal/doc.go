// Package modal provides a declarative modal dialog built from sections.
//
// A modal is rendered first and measured second: every Render pass asks the
// sections which focusable ids they produced, so keyboard navigation
// (Tab/Shift+Tab, Enter, Esc) always follows what is actually on screen.
//
// # Quick Start
//
//	m := modal.New("Screening", modal.WithPrimaryAction("relevant")).
//	    AddSection(modal.Text("Is this document relevant?")).
//	    AddSection(modal.Spacer()).
//	    AddSection(modal.Buttons(
//	        modal.Btn(" Relevant ", "relevant"),
//	        modal.Btn(" Irrelevant ", "irrelevant", modal.BtnDanger()),
//	    ))
//
//	// In View():
//	content := m.Render(screenW, screenH)
//
//	// In Update():
//	if action, cmd := m.HandleKey(keyMsg); action != "" {
//	    switch action {
//	    case "relevant":
//	        return record(models.LabelRelevant)
//	    case modal.ActionCancel:
//	        return closeDialog()
//	    }
//	}
//
// # Built-in Sections
//
//   - Text(s string) - static text, wrapped to the content width
//   - Spacer() - blank line
//   - Buttons(btns ...ButtonDef) - button row with focus styling
//   - List(id string, items []ListItem, selectedIdx *int, opts...) - scrollable list
//   - When(condition func() bool, section) - conditional rendering
//   - Custom(renderFn, updateFn) - escape hatch for complex content
//
// # Options
//
//   - WithWidth(w int) - set modal width (default: 60)
//   - WithVariant(v Variant) - set visual style (Default, Danger, Warning, Info)
//   - WithHints(show bool) - show/hide keyboard hints at bottom
//   - WithPrimaryAction(actionID string) - action for implicit Enter submit
package modal
