// Package cakemail renders CakeMail email content: merge fields, current-date
// placeholders and IF/ELSEIF/ELSE/ENDIF conditional blocks.
//
// # Quick Start
//
//	out, err := cakemail.Render(
//	    "Dear [firstname,friend],[IF `age` >= 18] welcome![ENDIF]",
//	    cakemail.Data{"firstname": "Bob", "age": 21},
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	// out == "Dear Bob, welcome!"
//
// # Template Syntax
//
// Merge fields:
//
//	[firstname]                 - field value, empty when absent
//	[firstname,friend]          - "friend" when the field is absent or null
//	[miles|#,#]                 - numeric format string
//	[signup_date|dd MMMM yyyy]  - date format string
//	[NOW|yyyy] [TODAY] [DATE]   - current UTC date and time
//
// Conditional blocks:
//
//	[IF `age` >= 18]Adult[ELSEIF `age` >= 13]Teen[ELSE]Child[ENDIF]
//
// Conditions are joined with AND and OR. The condition is split on AND first,
// so AND binds tighter than OR.
//
// Two comparison grammars exist, selected by the right-hand side:
//
//	`age` > "18"     - string grammar: compares the field's text, so 9 > "18"
//	`age` > 18       - numeric grammar: compares in the field's numeric type
//	`name` LIKE "B%" - SQL style wildcard, matched as a substring
//
// Floating-point fields compare with an epsilon of 1e-5 in the numeric
// grammar. A condition matching neither grammar is false.
//
// # Errors
//
// Only unbalanced IF/ENDIF markers fail; the error matches
// ErrMalformedTemplate. Every other problem renders as empty text or a false
// condition. An ENDIF that comes before the IF it would close stops
// conditional resolution: later markers render as empty merge fields and their
// text is kept. Use Validate to find such problems ahead of time.
//
// # Configuration
//
// The default engine reads CAKEMAIL_* environment variables, see Config.
// Engines can be created with their own configuration, clock, culture and
// logger:
//
//	engine, err := cakemail.NewWithConfig(&cakemail.Config{Culture: "de-DE"},
//	    cakemail.WithClock(func() time.Time { return fixed }))
package cakemail
